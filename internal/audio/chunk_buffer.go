package audio

import (
	"fmt"
	"math"
	"time"
)

type ChunkPolicy string

const (
	// ChunkPolicyFixed emits a chunk every Window of audio.
	ChunkPolicyFixed ChunkPolicy = "fixed"
	// ChunkPolicyVAD emits a chunk once at least MinDuration has accumulated
	// and the trailing SilenceDuration was silent, or at MaxDuration. Silence
	// is judged per analysis frame counted from the chunk start, so silence
	// cuts land on frame edges; the MaxDuration cut is exact.
	ChunkPolicyVAD ChunkPolicy = "vad"
)

// vadAnalysisFrame is the length of one VAD energy measurement.
const vadAnalysisFrame = 30 * time.Millisecond

type ChunkingConfig struct {
	Policy           ChunkPolicy
	SampleRate       int
	Window           time.Duration
	MinDuration      time.Duration
	MaxDuration      time.Duration
	SilenceDuration  time.Duration
	SilenceThreshold float64
}

func (c ChunkingConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("chunking sample rate must be positive, got %d", c.SampleRate)
	}
	switch c.Policy {
	case ChunkPolicyFixed:
		if DurationToSamples(c.Window, c.SampleRate) <= 0 {
			return fmt.Errorf("chunk window must be positive, got %s", c.Window)
		}
	case ChunkPolicyVAD:
		if c.MinDuration <= 0 {
			return fmt.Errorf("chunk min duration must be positive, got %s", c.MinDuration)
		}
		if c.MaxDuration < c.MinDuration {
			return fmt.Errorf("chunk max duration %s is shorter than min duration %s", c.MaxDuration, c.MinDuration)
		}
		if c.SilenceDuration <= 0 {
			return fmt.Errorf("chunk silence duration must be positive, got %s", c.SilenceDuration)
		}
		if c.SilenceThreshold < 0 {
			return fmt.Errorf("chunk silence threshold must not be negative, got %f", c.SilenceThreshold)
		}
	default:
		return fmt.Errorf("unknown chunk policy %q", c.Policy)
	}
	return nil
}

// ChunkBuffer accumulates samples into chunks. The accumulator never holds
// more than one window (fixed) or MaxDuration (vad) of audio, and every pushed
// sample ends up in exactly one emitted chunk once Flush is called.
type ChunkBuffer struct {
	cfg            ChunkingConfig
	windowSamples  int
	minSamples     int
	maxSamples     int
	silenceSamples int
	frameSamples   int

	pending     []int16
	startSample int64
	nextSeq     int

	frameFill       int
	frameEnergy     float64
	trailingSilence int
}

func NewChunkBuffer(cfg ChunkingConfig) (*ChunkBuffer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &ChunkBuffer{cfg: cfg}
	switch cfg.Policy {
	case ChunkPolicyFixed:
		b.windowSamples = DurationToSamples(cfg.Window, cfg.SampleRate)
	case ChunkPolicyVAD:
		b.minSamples = DurationToSamples(cfg.MinDuration, cfg.SampleRate)
		b.maxSamples = DurationToSamples(cfg.MaxDuration, cfg.SampleRate)
		b.silenceSamples = DurationToSamples(cfg.SilenceDuration, cfg.SampleRate)
		b.frameSamples = max(DurationToSamples(vadAnalysisFrame, cfg.SampleRate), 1)
	}
	b.pending = make([]int16, 0, b.capacityHint())
	return b, nil
}

func (b *ChunkBuffer) capacityHint() int {
	if b.cfg.Policy == ChunkPolicyFixed {
		return b.windowSamples
	}
	return b.minSamples
}

// Push adds one sample and returns a completed chunk when the policy is
// satisfied.
func (b *ChunkBuffer) Push(s int16) (Chunk, bool) {
	b.pending = append(b.pending, s)
	switch b.cfg.Policy {
	case ChunkPolicyFixed:
		if len(b.pending) >= b.windowSamples {
			return b.emit(false), true
		}
	case ChunkPolicyVAD:
		b.frameEnergy += float64(s) * float64(s)
		b.frameFill++
		if b.frameFill == b.frameSamples {
			b.closeAnalysisFrame()
			if len(b.pending) >= b.minSamples && b.trailingSilence >= b.silenceSamples {
				return b.emit(false), true
			}
		}
		if len(b.pending) >= b.maxSamples {
			return b.emit(false), true
		}
	}
	return Chunk{}, false
}

// Write pushes every sample and returns the chunks completed along the way.
func (b *ChunkBuffer) Write(samples []int16) []Chunk {
	var chunks []Chunk
	for _, s := range samples {
		if chunk, ok := b.Push(s); ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// Flush emits whatever is pending as the final chunk of the stream, however
// short it is.
func (b *ChunkBuffer) Flush() (Chunk, bool) {
	if len(b.pending) == 0 {
		return Chunk{}, false
	}
	return b.emit(true), true
}

// Pending reports the number of samples not yet emitted.
func (b *ChunkBuffer) Pending() int {
	return len(b.pending)
}

func (b *ChunkBuffer) closeAnalysisFrame() {
	rms := math.Sqrt(b.frameEnergy / float64(b.frameFill))
	if rms >= b.cfg.SilenceThreshold {
		b.trailingSilence = 0
	} else {
		b.trailingSilence += b.frameFill
	}
	b.frameFill = 0
	b.frameEnergy = 0
}

func (b *ChunkBuffer) emit(final bool) Chunk {
	chunk := Chunk{
		Seq:         b.nextSeq,
		StartSample: b.startSample,
		Samples:     b.pending,
		SampleRate:  b.cfg.SampleRate,
		Final:       final,
	}
	b.nextSeq++
	b.startSample += int64(len(b.pending))
	b.pending = make([]int16, 0, b.capacityHint())
	b.frameFill = 0
	b.frameEnergy = 0
	b.trailingSilence = 0
	return chunk
}
