package transcriber

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/transcriber"
)

// writeScript creates an executable shell script that records its arguments
// next to itself and then runs body.
func writeScript(t *testing.T, body string) (script, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	script = filepath.Join(dir, "whisper")
	argsFile = filepath.Join(dir, "args")
	content := "#!/bin/sh\nprintf '%s\\n' \"$@\" > " + argsFile + "\n" + body + "\n"
	if err := os.WriteFile(script, []byte(content), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return script, argsFile
}

func testChunk(seq int, startSample int64, n int) audio.Chunk {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 100)
	}
	return audio.Chunk{Seq: seq, StartSample: startSample, Samples: samples, SampleRate: 16000}
}

func TestWhisperCLIEngine_ParsesSegments(t *testing.T) {
	script, argsFile := writeScript(t, `cat <<'JSON'
{"text":"hello world","segments":[{"start":0.0,"end":0.5,"text":" hello"},{"start":0.5,"end":9.0,"text":" world"}]}
JSON`)
	engine, err := NewWhisperCLIEngine(WhisperCLIConfig{Command: script, ModelPath: "/models/ggml-tiny.en.bin", Language: "en"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunk := testChunk(3, 32000, 16000)
	segs, err := engine.Transcribe(context.Background(), chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[0].Text != "hello" || segs[0].Start != 2*time.Second || segs[0].End != 2500*time.Millisecond {
		t.Fatalf("unexpected first segment: %+v", segs[0])
	}
	if segs[1].Text != "world" || segs[1].End != 3*time.Second {
		t.Fatalf("second segment should be clamped to the chunk end: %+v", segs[1])
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	got := string(args)
	for _, want := range []string{"--audio\n", "--model\n/models/ggml-tiny.en.bin\n", "--language\nen\n"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in args, got %q", want, got)
		}
	}
	if strings.Contains(got, "--prompt") {
		t.Fatalf("first chunk must not carry a prompt: %q", got)
	}

	if _, err := engine.Transcribe(context.Background(), testChunk(4, 48000, 1600)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args, _ = os.ReadFile(argsFile)
	if !strings.Contains(string(args), "--prompt\nhello world\n") {
		t.Fatalf("expected rolling prompt from previous chunk, got %q", args)
	}
}

func TestWhisperCLIEngine_TextOnlyOutput(t *testing.T) {
	script, _ := writeScript(t, `echo '{"text":"  just text "}'`)
	engine, err := NewWhisperCLIEngine(WhisperCLIConfig{Command: script})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chunk := testChunk(0, 0, 8000)
	segs, err := engine.Transcribe(context.Background(), chunk)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(segs) != 1 || segs[0].Text != "just text" || segs[0].Start != 0 || segs[0].End != chunk.End() {
		t.Fatalf("unexpected segments: %+v", segs)
	}
}

func TestWhisperCLIEngine_CommandFailureIsRecoverable(t *testing.T) {
	script, _ := writeScript(t, `echo "model exploded" >&2; exit 3`)
	engine, err := NewWhisperCLIEngine(WhisperCLIConfig{Command: script})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = engine.Transcribe(context.Background(), testChunk(0, 0, 100))
	if err == nil {
		t.Fatal("expected error")
	}
	if transcriber.IsFatal(err) {
		t.Fatalf("command failure should only cost the chunk: %v", err)
	}
	if !strings.Contains(err.Error(), "model exploded") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestWhisperCLIEngine_BadJSON(t *testing.T) {
	script, _ := writeScript(t, `echo "not json"`)
	engine, err := NewWhisperCLIEngine(WhisperCLIConfig{Command: script})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := engine.Transcribe(context.Background(), testChunk(0, 0, 100)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNewWhisperCLIEngine_MissingCommand(t *testing.T) {
	_, err := NewWhisperCLIEngine(WhisperCLIConfig{Command: "kikitori-no-such-whisper --threads 2"})
	if !errors.Is(err, transcriber.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if _, err := NewWhisperCLIEngine(WhisperCLIConfig{Command: "  "}); err == nil {
		t.Fatal("expected error for empty command")
	}
}
