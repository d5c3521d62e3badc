package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/kikitori/internal/config"
)

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	AudioSource                string        `env:"AUDIO_SOURCE" envDefault:"mic"`
	AudioCaptureCommand        string        `env:"AUDIO_CAPTURE_COMMAND"`
	AudioInputDevice           string        `env:"AUDIO_INPUT_DEVICE"`
	AudioFilePath              string        `env:"AUDIO_FILE_PATH"`
	AudioSampleRate            int           `env:"AUDIO_SAMPLE_RATE" envDefault:"16000"`
	AudioFrameDuration         time.Duration `env:"AUDIO_FRAME_DURATION" envDefault:"20ms"`
	AudioDeviceProbeTimeout    time.Duration `env:"AUDIO_DEVICE_PROBE_TIMEOUT" envDefault:"3s"`
	ChunkPolicy                string        `env:"CHUNK_POLICY" envDefault:"vad"`
	ChunkWindow                time.Duration `env:"CHUNK_WINDOW" envDefault:"3s"`
	ChunkMinDuration           time.Duration `env:"CHUNK_MIN_DURATION" envDefault:"1s"`
	ChunkMaxDuration           time.Duration `env:"CHUNK_MAX_DURATION" envDefault:"10s"`
	ChunkSilenceDuration       time.Duration `env:"CHUNK_SILENCE_DURATION" envDefault:"500ms"`
	ChunkSilenceThreshold      float64       `env:"CHUNK_SILENCE_THRESHOLD" envDefault:"500"`
	ChunkQueueSize             int           `env:"CHUNK_QUEUE_SIZE" envDefault:"4"`
	ChunkOverflowPolicy        string        `env:"CHUNK_OVERFLOW_POLICY" envDefault:"block"`
	TranscribeEngine           string        `env:"TRANSCRIBE_ENGINE" envDefault:"whisper-cli"`
	TranscribeModel            string        `env:"TRANSCRIBE_MODEL" envDefault:"tiny.en"`
	TranscribeLanguage         string        `env:"TRANSCRIBE_LANGUAGE" envDefault:"en"`
	TranscribeTimeout          time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"45s"`
	WhisperCommand             string        `env:"WHISPER_COMMAND" envDefault:"whisper-cli"`
	WhisperModelDir            string        `env:"WHISPER_MODEL_DIR" envDefault:"models"`
	WhisperModelBaseURL        string        `env:"WHISPER_MODEL_BASE_URL" envDefault:"https://huggingface.co/ggerganov/whisper.cpp/resolve/main"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	OpenAIAPIKey               string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL              string        `env:"OPENAI_BASE_URL"`
	OutputFormat               string        `env:"OUTPUT_FORMAT" envDefault:"text"`
	OutputSuppressEmpty        bool          `env:"OUTPUT_SUPPRESS_EMPTY" envDefault:"true"`
	TranscriptWebhookURL       string        `env:"TRANSCRIPT_WEBHOOK_URL"`
	NATSURL                    string        `env:"NATS_URL"`
	NATSSubject                string        `env:"NATS_SUBJECT" envDefault:"kikitori.segments"`
	DatabaseURL                string        `env:"DATABASE_URL"`
	MetricsAddr                string        `env:"METRICS_ADDR"`
	DiscordToken               string        `env:"DISCORD_TOKEN"`
	DiscordGuildID             string        `env:"DISCORD_GUILD_ID"`
	DiscordVCID                string        `env:"DISCORD_VC_ID"`
	DiscordFollowUserID        string        `env:"DISCORD_FOLLOW_USER_ID"`
	ShutdownDrainTimeout       time.Duration `env:"SHUTDOWN_DRAIN_TIMEOUT" envDefault:"30s"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		AudioSource:                raw.AudioSource,
		AudioCaptureCommand:        raw.AudioCaptureCommand,
		AudioInputDevice:           raw.AudioInputDevice,
		AudioFilePath:              raw.AudioFilePath,
		AudioSampleRate:            raw.AudioSampleRate,
		AudioFrameDuration:         raw.AudioFrameDuration,
		AudioDeviceProbeTimeout:    raw.AudioDeviceProbeTimeout,
		ChunkPolicy:                raw.ChunkPolicy,
		ChunkWindow:                raw.ChunkWindow,
		ChunkMinDuration:           raw.ChunkMinDuration,
		ChunkMaxDuration:           raw.ChunkMaxDuration,
		ChunkSilenceDuration:       raw.ChunkSilenceDuration,
		ChunkSilenceThreshold:      raw.ChunkSilenceThreshold,
		ChunkQueueSize:             raw.ChunkQueueSize,
		ChunkOverflowPolicy:        raw.ChunkOverflowPolicy,
		TranscribeEngine:           raw.TranscribeEngine,
		TranscribeModel:            raw.TranscribeModel,
		TranscribeLanguage:         raw.TranscribeLanguage,
		TranscribeTimeout:          raw.TranscribeTimeout,
		WhisperCommand:             raw.WhisperCommand,
		WhisperModelDir:            raw.WhisperModelDir,
		WhisperModelBaseURL:        raw.WhisperModelBaseURL,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		OpenAIAPIKey:               raw.OpenAIAPIKey,
		OpenAIBaseURL:              raw.OpenAIBaseURL,
		OutputFormat:               raw.OutputFormat,
		OutputSuppressEmpty:        raw.OutputSuppressEmpty,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
		NATSURL:                    raw.NATSURL,
		NATSSubject:                raw.NATSSubject,
		DatabaseURL:                raw.DatabaseURL,
		MetricsAddr:                raw.MetricsAddr,
		DiscordToken:               raw.DiscordToken,
		DiscordGuildID:             raw.DiscordGuildID,
		DiscordVCID:                raw.DiscordVCID,
		DiscordFollowUserID:        raw.DiscordFollowUserID,
		ShutdownDrainTimeout:       raw.ShutdownDrainTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
