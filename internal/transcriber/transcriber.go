package transcriber

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
)

var (
	ErrModelUnavailable = errors.New("transcription model unavailable")
	ErrDownloadFailed   = errors.New("transcription model download failed")
)

// Segment is one unit of recognized text. Start and End are offsets from the
// beginning of the capture. Index is the position in the overall transcript
// and is assigned by the segment stream, not by engines.
type Segment struct {
	Index    int
	ChunkSeq int
	Text     string
	Start    time.Duration
	End      time.Duration
}

// Engine turns one chunk into zero or more segments. Implementations may keep
// rolling context between calls and are never called concurrently.
type Engine interface {
	Transcribe(ctx context.Context, chunk audio.Chunk) ([]Segment, error)
}

// ModelStore resolves a model identifier such as "tiny.en" to a local weights
// file, fetching it when necessary.
type ModelStore interface {
	Resolve(ctx context.Context, modelID string) (string, error)
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks an engine error as unrecoverable for the session. Unmarked
// errors only cost the chunk that produced them.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}
