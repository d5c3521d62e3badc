package config

import (
	"fmt"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
)

const (
	AudioSourceMic     = "mic"
	AudioSourceFile    = "file"
	AudioSourceDiscord = "discord"

	EngineWhisperCLI  = "whisper-cli"
	EngineCloudSpeech = "cloud-speech"
	EngineOpenAI      = "openai"
	EngineMock        = "mock"
)

type Config struct {
	Env string

	AudioSource             string
	AudioCaptureCommand     string
	AudioInputDevice        string
	AudioFilePath           string
	AudioSampleRate         int
	AudioFrameDuration      time.Duration
	AudioDeviceProbeTimeout time.Duration

	ChunkPolicy           string
	ChunkWindow           time.Duration
	ChunkMinDuration      time.Duration
	ChunkMaxDuration      time.Duration
	ChunkSilenceDuration  time.Duration
	ChunkSilenceThreshold float64
	ChunkQueueSize        int
	ChunkOverflowPolicy   string

	TranscribeEngine   string
	TranscribeModel    string
	TranscribeLanguage string
	TranscribeTimeout  time.Duration

	WhisperCommand      string
	WhisperModelDir     string
	WhisperModelBaseURL string

	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	OutputFormat         string
	OutputSuppressEmpty  bool
	TranscriptWebhookURL string
	NATSURL              string
	NATSSubject          string

	DatabaseURL string
	MetricsAddr string

	DiscordToken        string
	DiscordGuildID      string
	DiscordVCID         string
	DiscordFollowUserID string

	ShutdownDrainTimeout time.Duration
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.AudioSource {
	case AudioSourceMic, AudioSourceFile, AudioSourceDiscord:
	default:
		return fmt.Errorf("AUDIO_SOURCE must be one of mic, file, discord, got %q", c.AudioSource)
	}
	switch c.TranscribeEngine {
	case EngineWhisperCLI, EngineCloudSpeech, EngineOpenAI, EngineMock:
	default:
		return fmt.Errorf("TRANSCRIBE_ENGINE must be one of whisper-cli, cloud-speech, openai, mock, got %q", c.TranscribeEngine)
	}
	if c.AudioSource == AudioSourceDiscord && c.DiscordVCID == "" && c.DiscordFollowUserID == "" {
		return fmt.Errorf("DISCORD_VC_ID or DISCORD_FOLLOW_USER_ID is required when AUDIO_SOURCE=discord")
	}
	if c.AudioFrameDuration <= 0 {
		return fmt.Errorf("AUDIO_FRAME_DURATION must be positive, got %s", c.AudioFrameDuration)
	}
	if c.AudioDeviceProbeTimeout <= 0 {
		return fmt.Errorf("AUDIO_DEVICE_PROBE_TIMEOUT must be positive, got %s", c.AudioDeviceProbeTimeout)
	}
	if err := c.Chunking().Validate(); err != nil {
		return fmt.Errorf("chunking configuration is invalid: %w", err)
	}
	if c.ChunkQueueSize <= 0 {
		return fmt.Errorf("CHUNK_QUEUE_SIZE must be positive, got %d", c.ChunkQueueSize)
	}
	switch c.ChunkOverflowPolicy {
	case "block", "drop-oldest":
	default:
		return fmt.Errorf("CHUNK_OVERFLOW_POLICY must be block or drop-oldest, got %q", c.ChunkOverflowPolicy)
	}
	if c.TranscribeTimeout <= 0 {
		return fmt.Errorf("TRANSCRIBE_TIMEOUT must be positive, got %s", c.TranscribeTimeout)
	}
	switch c.OutputFormat {
	case "text", "json":
	default:
		return fmt.Errorf("OUTPUT_FORMAT must be text or json, got %q", c.OutputFormat)
	}
	if c.ShutdownDrainTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_DRAIN_TIMEOUT must be positive, got %s", c.ShutdownDrainTimeout)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	fields := []requiredEnvField{
		{name: "AUDIO_SOURCE", value: c.AudioSource},
		{name: "TRANSCRIBE_ENGINE", value: c.TranscribeEngine},
		{name: "TRANSCRIBE_LANGUAGE", value: c.TranscribeLanguage},
	}
	switch c.AudioSource {
	case AudioSourceFile:
		fields = append(fields, requiredEnvField{name: "AUDIO_FILE_PATH", value: c.AudioFilePath})
	case AudioSourceDiscord:
		fields = append(fields,
			requiredEnvField{name: "DISCORD_TOKEN", value: c.DiscordToken},
			requiredEnvField{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID})
	}
	switch c.TranscribeEngine {
	case EngineWhisperCLI:
		fields = append(fields,
			requiredEnvField{name: "TRANSCRIBE_MODEL", value: c.TranscribeModel},
			requiredEnvField{name: "WHISPER_COMMAND", value: c.WhisperCommand},
			requiredEnvField{name: "WHISPER_MODEL_DIR", value: c.WhisperModelDir})
	case EngineCloudSpeech:
		fields = append(fields,
			requiredEnvField{name: "GOOGLE_CLOUD_PROJECT_ID", value: c.GoogleCloudProjectID},
			requiredEnvField{name: "GOOGLE_CLOUD_CREDENTIALS_JSON", value: c.GoogleCloudCredentialsJSON})
	case EngineOpenAI:
		fields = append(fields, requiredEnvField{name: "OPENAI_API_KEY", value: c.OpenAIAPIKey})
	}
	if c.NATSURL != "" {
		fields = append(fields, requiredEnvField{name: "NATS_SUBJECT", value: c.NATSSubject})
	}
	return fields
}

// Chunking returns the chunk buffer settings for the configured capture rate.
func (c *Config) Chunking() audio.ChunkingConfig {
	return audio.ChunkingConfig{
		Policy:           audio.ChunkPolicy(c.ChunkPolicy),
		SampleRate:       c.AudioSampleRate,
		Window:           c.ChunkWindow,
		MinDuration:      c.ChunkMinDuration,
		MaxDuration:      c.ChunkMaxDuration,
		SilenceDuration:  c.ChunkSilenceDuration,
		SilenceThreshold: c.ChunkSilenceThreshold,
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
