package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Env:                     "development",
		AudioSource:             AudioSourceMic,
		AudioSampleRate:         16000,
		AudioFrameDuration:      20 * time.Millisecond,
		AudioDeviceProbeTimeout: 3 * time.Second,
		ChunkPolicy:             "vad",
		ChunkWindow:             3 * time.Second,
		ChunkMinDuration:        time.Second,
		ChunkMaxDuration:        10 * time.Second,
		ChunkSilenceDuration:    500 * time.Millisecond,
		ChunkSilenceThreshold:   500,
		ChunkQueueSize:          4,
		ChunkOverflowPolicy:     "block",
		TranscribeEngine:        EngineWhisperCLI,
		TranscribeModel:         "tiny.en",
		TranscribeLanguage:      "en",
		TranscribeTimeout:       45 * time.Second,
		WhisperCommand:          "whisper-cli",
		WhisperModelDir:         "models",
		OutputFormat:            "text",
		ShutdownDrainTimeout:    30 * time.Second,
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	cfg := &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when required fields are missing")
	}
}

func TestValidate_SourceSpecificFields(t *testing.T) {
	cfg := validConfig()
	cfg.AudioSource = AudioSourceFile
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "AUDIO_FILE_PATH") {
		t.Fatalf("expected AUDIO_FILE_PATH error, got %v", err)
	}

	cfg = validConfig()
	cfg.AudioSource = AudioSourceDiscord
	cfg.DiscordToken = "token"
	cfg.DiscordGuildID = "guild"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DISCORD_VC_ID") {
		t.Fatalf("expected voice channel error, got %v", err)
	}
	cfg.DiscordFollowUserID = "user-1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected follow user to satisfy channel selection, got %v", err)
	}
}

func TestValidate_EngineSpecificFields(t *testing.T) {
	cfg := validConfig()
	cfg.TranscribeEngine = EngineCloudSpeech
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "GOOGLE_CLOUD_PROJECT_ID") {
		t.Fatalf("expected project id error, got %v", err)
	}

	cfg = validConfig()
	cfg.TranscribeEngine = EngineOpenAI
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected api key error, got %v", err)
	}

	cfg = validConfig()
	cfg.TranscribeEngine = "vosk"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestValidate_InvalidChunking(t *testing.T) {
	cfg := validConfig()
	cfg.ChunkMaxDuration = 500 * time.Millisecond
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max duration is below min duration")
	}

	cfg = validConfig()
	cfg.ChunkOverflowPolicy = "drop-newest"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown overflow policy")
	}

	cfg = validConfig()
	cfg.ChunkQueueSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty chunk queue")
	}
}

func TestValidate_NATSSubjectRequiredWithURL(t *testing.T) {
	cfg := validConfig()
	cfg.NATSURL = "nats://127.0.0.1:4222"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when NATS_SUBJECT is missing")
	}
	cfg.NATSSubject = "kikitori.segments"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestChunking(t *testing.T) {
	got := validConfig().Chunking()
	if got.SampleRate != 16000 || got.Policy != "vad" || got.MaxDuration != 10*time.Second {
		t.Fatalf("unexpected chunking config: %+v", got)
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	if !cfg.IsDevelopment() {
		t.Fatal("expected development mode")
	}
	cfg.Env = "production"
	if cfg.IsDevelopment() {
		t.Fatal("expected non-development mode")
	}
}
