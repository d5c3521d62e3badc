package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/config"
	"github.com/foxseedlab/kikitori/internal/metrics"
	"github.com/foxseedlab/kikitori/internal/output"
	"github.com/foxseedlab/kikitori/internal/repository"
	"github.com/foxseedlab/kikitori/internal/transcriber"
)

const (
	statsInterval = 5 * time.Second
	ledgerTimeout = 10 * time.Second

	stopReasonInterrupted  = "interrupted"
	stopReasonDrainExpired = "interrupted; drain timed out"
)

var ErrSourceBusy = errors.New("audio source already has a running session")

type Manager struct {
	cfg     *config.Config
	repo    repository.Repository
	engine  transcriber.Engine
	sink    output.Sink
	metrics metrics.Recorder

	mu     sync.Mutex
	active map[string]struct{}
}

// Summary describes a finished session.
type Summary struct {
	SessionID  string
	StopReason string
	State      StreamState
}

func NewManager(cfg *config.Config, repo repository.Repository, engine transcriber.Engine, sink output.Sink, recorder metrics.Recorder) *Manager {
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Manager{
		cfg:     cfg,
		repo:    repo,
		engine:  engine,
		sink:    sink,
		metrics: recorder,
		active:  make(map[string]struct{}),
	}
}

func (m *Manager) streamOptions() StreamOptions {
	return StreamOptions{
		Chunking:         m.cfg.Chunking(),
		QueueSize:        m.cfg.ChunkQueueSize,
		Overflow:         OverflowPolicy(m.cfg.ChunkOverflowPolicy),
		InferenceTimeout: m.cfg.TranscribeTimeout,
		Metrics:          m.metrics,
	}
}

// Run transcribes source until it ends or ctx is canceled. Cancellation stops
// the capture and drains buffered audio for up to the configured drain
// timeout before returning.
func (m *Manager) Run(ctx context.Context, source audio.Source) (*Summary, error) {
	key := source.Key()
	if err := m.acquire(key); err != nil {
		return nil, err
	}
	defer m.release(key)
	slog.Info("start session requested", "source", key, "engine", m.cfg.TranscribeEngine, "model", m.cfg.TranscribeModel)

	if err := m.completeOrphan(ctx, key); err != nil {
		return nil, err
	}

	stream, err := Open(ctx, source, m.engine, m.streamOptions())
	if err != nil {
		slog.Error("failed to open audio source", "error", err, "source", key)
		return nil, fmt.Errorf("open audio source %s: %w", key, err)
	}
	defer stream.Close()

	created, err := m.repo.CreateSession(ctx, repository.CreateSessionInput{
		SourceKey: key,
		Engine:    m.cfg.TranscribeEngine,
		Model:     m.cfg.TranscribeModel,
		StartedAt: time.Now(),
	})
	if err != nil {
		slog.Error("failed to create session in repository", "error", err, "source", key)
		return nil, fmt.Errorf("create session: %w", err)
	}
	slog.Info("session activated", "session_id", created.ID, "source", key)

	consumeCtx, cancelConsume := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelConsume()
	done := make(chan struct{})
	var drainExpired atomic.Bool
	go m.watch(ctx, created.ID, stream, done, func() {
		drainExpired.Store(true)
		cancelConsume()
	})

	runErr := m.consume(consumeCtx, created.ID, stream)
	close(done)
	if runErr != nil && drainExpired.Load() && errors.Is(runErr, context.Canceled) {
		slog.Warn("drain timed out; abandoning buffered audio", "session_id", created.ID, "timeout", m.cfg.ShutdownDrainTimeout)
		runErr = nil
	}

	state := stream.State()
	reason := state.EndReason
	switch {
	case drainExpired.Load():
		reason = stopReasonDrainExpired
	case ctx.Err() != nil:
		reason = stopReasonInterrupted
	case runErr != nil:
		reason = runErr.Error()
	}
	m.completeSession(created.ID, reason, state)

	slog.Info("session finished",
		"session_id", created.ID,
		"reason", reason,
		"samples_captured", state.SamplesCaptured,
		"chunks_queued", state.ChunksQueued,
		"chunks_transcribed", state.ChunksTranscribed,
		"chunks_failed", state.ChunksFailed,
		"chunks_dropped", state.ChunksDropped,
		"segments_emitted", state.SegmentsEmitted)
	return &Summary{SessionID: created.ID, StopReason: reason, State: state}, runErr
}

func (m *Manager) acquire(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.active[key]; exists {
		slog.Warn("session already active for source", "source", key)
		return fmt.Errorf("%w: %s", ErrSourceBusy, key)
	}
	m.active[key] = struct{}{}
	return nil
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	delete(m.active, key)
	m.mu.Unlock()
}

func (m *Manager) completeOrphan(ctx context.Context, key string) error {
	sess, err := m.repo.GetRunningSessionBySource(ctx, key)
	if err != nil {
		slog.Error("failed to query running session", "error", err, "source", key)
		return fmt.Errorf("query running session: %w", err)
	}
	if sess == nil {
		return nil
	}
	slog.Warn("found orphan running session in repository; closing and continuing", "session_id", sess.ID, "source", key)
	if err := m.repo.UpdateSessionCompleted(ctx, repository.CompleteSessionInput{
		SessionID:  sess.ID,
		EndedAt:    time.Now(),
		StopReason: repository.StopReasonOrphaned,
	}); err != nil {
		slog.Error("failed to complete orphan session", "error", err, "session_id", sess.ID)
		return fmt.Errorf("complete orphan session: %w", err)
	}
	return nil
}

func (m *Manager) consume(ctx context.Context, sessionID string, stream *Stream) error {
	for {
		seg, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			slog.Error("segment stream failed", "error", err, "session_id", sessionID)
			return err
		}
		if err := m.sink.Emit(ctx, seg); err != nil {
			slog.Warn("failed to emit segment", "error", err, "session_id", sessionID, "segment_index", seg.Index)
		}
	}
}

// watch logs pipeline stats and turns cancellation of ctx into a graceful
// stop bounded by the drain timeout.
func (m *Manager) watch(ctx context.Context, sessionID string, stream *Stream, done <-chan struct{}, expire func()) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			state := stream.State()
			slog.Info("audio pipeline stats",
				"session_id", sessionID,
				"samples_captured", state.SamplesCaptured,
				"chunks_queued", state.ChunksQueued,
				"chunks_transcribed", state.ChunksTranscribed,
				"segments_emitted", state.SegmentsEmitted)
		case <-ctx.Done():
			slog.Info("stop requested; draining buffered audio", "session_id", sessionID, "timeout", m.cfg.ShutdownDrainTimeout)
			stream.Stop()
			timer := time.NewTimer(m.cfg.ShutdownDrainTimeout)
			defer timer.Stop()
			select {
			case <-done:
			case <-timer.C:
				expire()
			}
			return
		}
	}
}

func (m *Manager) completeSession(sessionID, reason string, state StreamState) {
	ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
	defer cancel()
	if err := m.repo.UpdateSessionCompleted(ctx, repository.CompleteSessionInput{
		SessionID:       sessionID,
		EndedAt:         time.Now(),
		StopReason:      reason,
		SamplesCaptured: state.SamplesCaptured,
		ChunkCount:      state.ChunksTranscribed,
		SegmentCount:    state.SegmentsEmitted,
		FailedChunks:    state.ChunksFailed,
		DroppedChunks:   state.ChunksDropped,
	}); err != nil {
		slog.Error("failed to complete session", "error", err, "session_id", sessionID)
	}
}
