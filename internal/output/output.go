package output

import (
	"context"
	"errors"

	"github.com/foxseedlab/kikitori/internal/transcriber"
)

// Sink consumes segments in the order they are emitted.
type Sink interface {
	Emit(ctx context.Context, seg transcriber.Segment) error
	Close(ctx context.Context) error
}

// SegmentRecord is the wire shape shared by the JSON writer, webhook and bus
// sinks.
type SegmentRecord struct {
	Index   int    `json:"index"`
	Chunk   int    `json:"chunk"`
	Text    string `json:"text"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
}

func NewSegmentRecord(seg transcriber.Segment) SegmentRecord {
	return SegmentRecord{
		Index:   seg.Index,
		Chunk:   seg.ChunkSeq,
		Text:    seg.Text,
		StartMS: seg.Start.Milliseconds(),
		EndMS:   seg.End.Milliseconds(),
	}
}

// Fanout forwards every segment to all sinks. A failing sink does not stop
// delivery to the others.
type Fanout []Sink

func (f Fanout) Emit(ctx context.Context, seg transcriber.Segment) error {
	var errs []error
	for _, s := range f {
		if err := s.Emit(ctx, seg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close(ctx context.Context) error {
	var errs []error
	for _, s := range f {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
