package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUDIO_SOURCE", "mic")
	t.Setenv("TRANSCRIBE_ENGINE", "mock")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.AudioSampleRate != 16000 || cfg.ChunkPolicy != "vad" || cfg.ChunkQueueSize != 4 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.TranscribeTimeout != 45*time.Second || cfg.ShutdownDrainTimeout != 30*time.Second {
		t.Fatalf("unexpected timeouts: %s %s", cfg.TranscribeTimeout, cfg.ShutdownDrainTimeout)
	}
	if cfg.TranscribeModel != "tiny.en" || cfg.OutputFormat != "text" || !cfg.OutputSuppressEmpty {
		t.Fatalf("unexpected output defaults: %+v", cfg)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("CHUNK_WINDOW", "three seconds")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error for invalid duration")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("AUDIO_SOURCE", "file")
	t.Setenv("AUDIO_FILE_PATH", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected validation error when file path is missing")
	}
}

func TestLoad_InputDevice(t *testing.T) {
	t.Setenv("AUDIO_SOURCE", "mic")
	t.Setenv("TRANSCRIBE_ENGINE", "mock")
	t.Setenv("AUDIO_INPUT_DEVICE", "alsa_input.usb-mic.analog-stereo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AudioInputDevice != "alsa_input.usb-mic.analog-stereo" {
		t.Fatalf("unexpected input device: %q", cfg.AudioInputDevice)
	}
}
