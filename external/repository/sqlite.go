package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    source_key TEXT NOT NULL,
    engine TEXT NOT NULL,
    model TEXT NOT NULL,
    started_at TEXT NOT NULL,
    ended_at TEXT,
    status TEXT NOT NULL DEFAULT 'running',
    stop_reason TEXT NOT NULL DEFAULT '',
    samples_captured INTEGER NOT NULL DEFAULT 0,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    segment_count INTEGER NOT NULL DEFAULT 0,
    failed_chunks INTEGER NOT NULL DEFAULT 0,
    dropped_chunks INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sessions_source_status ON sessions(source_key, status);
`

// SQLiteRepository keeps the session ledger in a local SQLite file.
// Timestamps are stored as fixed-width RFC 3339 text in UTC.
type SQLiteRepository struct {
	db *sql.DB
}

func OpenSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	s := &repository.Session{
		ID:        uuid.NewString(),
		SourceKey: input.SourceKey,
		Engine:    input.Engine,
		Model:     input.Model,
		StartedAt: input.StartedAt.UTC(),
		Status:    repository.SessionStatusRunning,
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, source_key, engine, model, started_at, status) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.SourceKey, s.Engine, s.Model, formatTime(s.StartedAt), string(s.Status))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SQLiteRepository) UpdateSessionCompleted(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET status = 'completed', ended_at = ?, stop_reason = ?,
		 samples_captured = ?, chunk_count = ?, segment_count = ?, failed_chunks = ?, dropped_chunks = ?
		 WHERE id = ?`,
		formatTime(input.EndedAt), input.StopReason,
		input.SamplesCaptured, input.ChunkCount, input.SegmentCount, input.FailedChunks, input.DroppedChunks,
		input.SessionID)
	return err
}

func (r *SQLiteRepository) GetRunningSessionBySource(ctx context.Context, sourceKey string) (*repository.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, source_key, engine, model, started_at, ended_at, status, stop_reason,
		        samples_captured, chunk_count, segment_count, failed_chunks, dropped_chunks
		 FROM sessions WHERE source_key = ? AND status = 'running'
		 ORDER BY started_at DESC LIMIT 1`,
		sourceKey)
	return scanSQLiteSession(row)
}

func (r *SQLiteRepository) getSession(ctx context.Context, id string) (*repository.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, source_key, engine, model, started_at, ended_at, status, stop_reason,
		        samples_captured, chunk_count, segment_count, failed_chunks, dropped_chunks
		 FROM sessions WHERE id = ?`,
		id)
	return scanSQLiteSession(row)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanSQLiteSession(row *sql.Row) (*repository.Session, error) {
	var s repository.Session
	var startedAt, status string
	var endedAt sql.NullString
	err := row.Scan(&s.ID, &s.SourceKey, &s.Engine, &s.Model, &startedAt, &endedAt, &status, &s.StopReason,
		&s.SamplesCaptured, &s.ChunkCount, &s.SegmentCount, &s.FailedChunks, &s.DroppedChunks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Status = repository.SessionStatus(status)
	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t, err := parseTime(endedAt.String)
		if err != nil {
			return nil, err
		}
		s.EndedAt = &t
	}
	return &s, nil
}

// sortableTimeLayout keeps every fraction digit so that text order matches
// time order.
const sortableTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sortableTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
