package repository

import (
	"context"

	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/google/uuid"
)

// NoopRepository is used when no database is configured. Sessions get an id
// for log correlation but nothing is persisted.
type NoopRepository struct{}

func (NoopRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	return &repository.Session{
		ID:        uuid.NewString(),
		SourceKey: input.SourceKey,
		Engine:    input.Engine,
		Model:     input.Model,
		StartedAt: input.StartedAt,
		Status:    repository.SessionStatusRunning,
	}, nil
}

func (NoopRepository) UpdateSessionCompleted(context.Context, repository.CompleteSessionInput) error {
	return nil
}

func (NoopRepository) GetRunningSessionBySource(context.Context, string) (*repository.Session, error) {
	return nil, nil
}

func (NoopRepository) Close() error { return nil }
