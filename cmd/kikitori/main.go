package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/kikitori/external/audio"
	configloader "github.com/foxseedlab/kikitori/external/config"
	"github.com/foxseedlab/kikitori/external/discord"
	metricsimpl "github.com/foxseedlab/kikitori/external/metrics"
	outputimpl "github.com/foxseedlab/kikitori/external/output"
	repositoryimpl "github.com/foxseedlab/kikitori/external/repository"
	transcriberimpl "github.com/foxseedlab/kikitori/external/transcriber"
	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/output"
	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/session"
	"github.com/samber/do/v2"
)

const sinkCloseTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	slog.Info("startup: loading configuration")
	cfg, ok := loadConfig()
	if !ok {
		return 1
	}
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "source", cfg.AudioSource, "engine", cfg.TranscribeEngine)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)
	defer func() {
		if report := injector.Shutdown(); report != nil && !report.Succeed {
			slog.Warn("dependency shutdown reported errors", "error", report.Error())
		}
	}()

	source, err := do.Invoke[audio.Source](injector)
	if err != nil {
		slog.Error("failed to resolve audio source", "error", err)
		return 1
	}
	sink, err := do.Invoke[output.Sink](injector)
	if err != nil {
		slog.Error("failed to resolve output sink", "error", err)
		return 1
	}
	defer closeSink(sink)
	repo, err := do.Invoke[repository.Repository](injector)
	if err != nil {
		slog.Error("failed to resolve session repository", "error", err)
		return 1
	}
	defer func() {
		if err := repo.Close(); err != nil {
			slog.Warn("repository close failed", "error", err)
		}
	}()
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("startup: transcribing", "source", source.Key())
	summary, err := manager.Run(ctx, source)
	if err != nil {
		slog.Error("transcription ended with error", "error", err)
		return 1
	}
	slog.Info("shutting down", "session_id", summary.SessionID, "reason", summary.StopReason)
	return 0
}

func loadConfig() (*config.Config, bool) {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		return nil, false
	}
	return cfg, true
}

// initLogger writes to stderr; stdout carries the transcript.
func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	outputimpl.RegisterDI(injector)
	metricsimpl.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func closeSink(sink output.Sink) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkCloseTimeout)
	defer cancel()
	if err := sink.Close(ctx); err != nil {
		slog.Warn("output sink close failed", "error", err)
	}
}
