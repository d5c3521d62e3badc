package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/do/v2"
)

const databaseInitTimeout = 15 * time.Second

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (repository.Repository, error) {
		cfg := do.MustInvoke[*config.Config](i)
		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		return Open(ctx, cfg.DatabaseURL)
	})
}

// Open picks the ledger backend from the URL scheme: postgres:// and
// postgresql:// use PostgreSQL, sqlite://path uses a local file and an
// empty URL disables persistence.
func Open(ctx context.Context, databaseURL string) (repository.Repository, error) {
	switch {
	case databaseURL == "":
		return NoopRepository{}, nil
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := pgxpool.New(ctx, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect database: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := RunMigration(ctx, p); err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to run migration: %w", err)
		}
		return NewPostgresRepository(p), nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite database path is empty")
		}
		return OpenSQLiteRepository(ctx, path)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", databaseURL)
	}
}
