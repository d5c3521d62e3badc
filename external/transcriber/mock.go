package transcriber

import (
	"context"
	"fmt"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/transcriber"
)

// MockEngine reports chunks louder than the threshold as speech and returns
// no text for quiet ones. Output depends only on the samples, so it is handy
// for dry runs and replay checks without a model.
type MockEngine struct {
	threshold float64
}

func NewMockEngine(threshold float64) *MockEngine {
	return &MockEngine{threshold: threshold}
}

func (e *MockEngine) Transcribe(_ context.Context, chunk audio.Chunk) ([]transcriber.Segment, error) {
	rms := audio.RMS(chunk.Samples)
	if rms < e.threshold {
		return nil, nil
	}
	return []transcriber.Segment{{
		Text:  fmt.Sprintf("[speech %d rms=%.0f]", chunk.Seq, rms),
		Start: chunk.Start(),
		End:   chunk.End(),
	}}, nil
}
