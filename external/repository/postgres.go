package repository

import (
	"context"
	"errors"

	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, source_key, engine, model, started_at, ended_at, status, stop_reason,
	samples_captured, chunk_count, segment_count, failed_chunks, dropped_chunks`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (source_key, engine, model, started_at, status)
		 VALUES ($1, $2, $3, $4, 'running')
		 RETURNING `+sessionColumns,
		input.SourceKey, input.Engine, input.Model, input.StartedAt)
	return scanPostgresSession(row)
}

func (r *PostgresRepository) UpdateSessionCompleted(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET status = 'completed', ended_at = $2, stop_reason = $3,
		 samples_captured = $4, chunk_count = $5, segment_count = $6, failed_chunks = $7, dropped_chunks = $8
		 WHERE id = $1`,
		input.SessionID, input.EndedAt, input.StopReason,
		input.SamplesCaptured, input.ChunkCount, input.SegmentCount, input.FailedChunks, input.DroppedChunks)
	return err
}

func (r *PostgresRepository) GetRunningSessionBySource(ctx context.Context, sourceKey string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM sessions WHERE source_key = $1 AND status = 'running'
		 ORDER BY started_at DESC LIMIT 1`,
		sourceKey)
	s, err := scanPostgresSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func scanPostgresSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	var status string
	err := row.Scan(&s.ID, &s.SourceKey, &s.Engine, &s.Model, &s.StartedAt, &s.EndedAt, &status, &s.StopReason,
		&s.SamplesCaptured, &s.ChunkCount, &s.SegmentCount, &s.FailedChunks, &s.DroppedChunks)
	if err != nil {
		return nil, err
	}
	s.Status = repository.SessionStatus(status)
	return &s, nil
}
