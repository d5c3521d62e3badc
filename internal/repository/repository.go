package repository

import (
	"context"
	"time"
)

// StopReasonOrphaned marks a session left running by a previous process.
const StopReasonOrphaned = "orphaned"

type CreateSessionInput struct {
	SourceKey string
	Engine    string
	Model     string
	StartedAt time.Time
}

type CompleteSessionInput struct {
	SessionID       string
	EndedAt         time.Time
	StopReason      string
	SamplesCaptured int64
	ChunkCount      int
	SegmentCount    int
	FailedChunks    int
	DroppedChunks   int
}

// Repository is the session ledger. It records run metadata and counters,
// never transcript text.
type Repository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) (*Session, error)
	UpdateSessionCompleted(ctx context.Context, input CompleteSessionInput) error
	GetRunningSessionBySource(ctx context.Context, sourceKey string) (*Session, error)
	Close() error
}
