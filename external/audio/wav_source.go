package audio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource replays a 16-bit PCM WAV file as if it were a live capture.
// Multi-channel files are down-mixed to mono. Replay runs as fast as the
// consumer pulls, so the same file always yields the same chunks.
type WAVSource struct {
	path         string
	sampleRate   int
	frameSamples int
}

func NewWAVSource(path string, sampleRate int, frame time.Duration) (*WAVSource, error) {
	frameSamples := audio.DurationToSamples(frame, sampleRate)
	if frameSamples <= 0 {
		return nil, fmt.Errorf("capture frame %s is too short for %d Hz", frame, sampleRate)
	}
	return &WAVSource{path: path, sampleRate: sampleRate, frameSamples: frameSamples}, nil
}

func (s *WAVSource) Key() string {
	if abs, err := filepath.Abs(s.path); err == nil {
		return "file:" + abs
	}
	return "file:" + s.path
}

func (s *WAVSource) Open(_ context.Context) (audio.Capture, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is not a readable wav file", audio.ErrDeviceUnavailable, s.path)
	}
	if dec.BitDepth != 16 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s has %d-bit samples, want 16-bit PCM", audio.ErrDeviceUnavailable, s.path, dec.BitDepth)
	}
	if int(dec.SampleRate) != s.sampleRate {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is %d Hz, want %d Hz", audio.ErrDeviceUnavailable, s.path, dec.SampleRate, s.sampleRate)
	}
	if err := dec.FwdToPCM(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %v", audio.ErrDeviceUnavailable, s.path, err)
	}
	channels := int(dec.NumChans)
	return &wavCapture{
		file:       f,
		dec:        dec,
		channels:   channels,
		sampleRate: s.sampleRate,
		buf: &goaudio.IntBuffer{
			Format: dec.Format(),
			Data:   make([]int, s.frameSamples*channels),
		},
	}, nil
}

type wavCapture struct {
	mu         sync.Mutex
	file       *os.File
	dec        *wav.Decoder
	channels   int
	sampleRate int
	buf        *goaudio.IntBuffer
	closed     bool
}

func (c *wavCapture) Read(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, io.EOF
	}
	n, err := c.dec.PCMBuffer(c.buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceLost, err)
	}
	n -= n % c.channels
	if n == 0 {
		return nil, io.EOF
	}
	samples := make([]int16, n)
	for i, v := range c.buf.Data[:n] {
		samples[i] = int16(v)
	}
	return audio.Frame(audio.DownmixInterleaved(samples, c.channels)), nil
}

func (c *wavCapture) SampleRate() int {
	return c.sampleRate
}

func (c *wavCapture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.file.Close()
}
