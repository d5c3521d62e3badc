package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/output"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeWAV(t *testing.T, rate, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close wav encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close wav file: %v", err)
	}
	return path
}

func TestWAVSource_ReadsMonoSamples(t *testing.T) {
	samples := make([]int, 1000)
	for i := range samples {
		samples[i] = i - 500
	}
	src, err := NewWAVSource(writeWAV(t, 16000, 1, samples), 16000, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer c.Close()

	got := readAll(t, c)
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if int(got[i]) != samples[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, samples[i], got[i])
		}
	}
}

func TestWAVSource_DownmixesStereo(t *testing.T) {
	samples := make([]int, 0, 640)
	for i := 0; i < 320; i++ {
		samples = append(samples, 100, 300)
	}
	src, err := NewWAVSource(writeWAV(t, 16000, 2, samples), 16000, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer c.Close()

	got := readAll(t, c)
	if len(got) != 320 {
		t.Fatalf("expected 320 mono samples, got %d", len(got))
	}
	for _, s := range got {
		if s != 200 {
			t.Fatalf("expected averaged sample 200, got %d", s)
		}
	}
}

func TestWAVSource_RejectsUnusableFiles(t *testing.T) {
	src, _ := NewWAVSource(writeWAV(t, 8000, 1, make([]int, 100)), 16000, 20*time.Millisecond)
	if _, err := src.Open(context.Background()); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected rate mismatch to be unavailable, got %v", err)
	}

	src, _ = NewWAVSource(filepath.Join(t.TempDir(), "missing.wav"), 16000, 20*time.Millisecond)
	if _, err := src.Open(context.Background()); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected missing file to be unavailable, got %v", err)
	}

	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(garbage, []byte("not a wav file"), 0o600); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	src, _ = NewWAVSource(garbage, 16000, 20*time.Millisecond)
	if _, err := src.Open(context.Background()); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected invalid file to be unavailable, got %v", err)
	}
}

func TestWAVSource_ReadAfterClose(t *testing.T) {
	src, _ := NewWAVSource(writeWAV(t, 16000, 1, make([]int, 1000)), 16000, 20*time.Millisecond)
	c, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	_ = c.Close()
	if _, err := c.Read(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after close, got %v", err)
	}
}

// energyEngine labels loud chunks with their sequence number and stays silent
// otherwise.
type energyEngine struct{}

func (energyEngine) Transcribe(_ context.Context, chunk audio.Chunk) ([]transcriber.Segment, error) {
	if audio.RMS(chunk.Samples) < 500 {
		return nil, nil
	}
	return []transcriber.Segment{{Text: fmt.Sprintf("speech-%d", chunk.Seq), Start: chunk.Start(), End: chunk.End()}}, nil
}

func TestWAVSource_ReplayIsByteIdentical(t *testing.T) {
	const rate = 16000
	var samples []int
	for burst := 0; burst < 3; burst++ {
		for i := 0; i < rate; i++ {
			samples = append(samples, int(6000*math.Sin(2*math.Pi*220*float64(i)/rate)))
		}
		samples = append(samples, make([]int, rate)...)
	}
	path := writeWAV(t, rate, 1, samples)

	replay := func() []byte {
		src, err := NewWAVSource(path, rate, 20*time.Millisecond)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		stream, err := session.Open(context.Background(), src, energyEngine{}, session.StreamOptions{
			Chunking: audio.ChunkingConfig{
				Policy:           audio.ChunkPolicyVAD,
				SampleRate:       rate,
				MinDuration:      time.Second,
				MaxDuration:      10 * time.Second,
				SilenceDuration:  500 * time.Millisecond,
				SilenceThreshold: 500,
			},
		})
		if err != nil {
			t.Fatalf("open stream: %v", err)
		}
		defer stream.Close()

		var out bytes.Buffer
		w := output.NewWriter(&out, output.FormatJSON, false)
		for {
			seg, err := stream.Next(context.Background())
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("stream failed: %v", err)
			}
			if err := w.Emit(context.Background(), seg); err != nil {
				t.Fatalf("emit failed: %v", err)
			}
		}
		return out.Bytes()
	}

	first, second := replay(), replay()
	if len(first) == 0 || !bytes.Equal(first, second) {
		t.Fatalf("replay output differs:\n%s\n---\n%s", first, second)
	}
	if !bytes.Contains(first, []byte(`"text":"speech-0"`)) {
		t.Fatalf("expected the first burst to be transcribed:\n%s", first)
	}
}
