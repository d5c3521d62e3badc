package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/metrics"
	"github.com/foxseedlab/kikitori/internal/transcriber"
)

type OverflowPolicy string

const (
	// OverflowBlock stops reading the capture while the queue is full, which
	// pushes backpressure down to the device driver.
	OverflowBlock OverflowPolicy = "block"
	// OverflowDropOldest discards the oldest queued chunk to make room.
	OverflowDropOldest OverflowPolicy = "drop-oldest"
)

const (
	defaultQueueSize        = 4
	defaultInferenceTimeout = 45 * time.Second

	endReasonSourceEnded = "audio source ended"
	endReasonStopped     = "stopped"
	endReasonAborted     = "aborted"
)

type StreamOptions struct {
	Chunking         audio.ChunkingConfig
	QueueSize        int
	Overflow         OverflowPolicy
	InferenceTimeout time.Duration
	Metrics          metrics.Recorder
}

func (o StreamOptions) withDefaults() StreamOptions {
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Overflow == "" {
		o.Overflow = OverflowBlock
	}
	if o.InferenceTimeout <= 0 {
		o.InferenceTimeout = defaultInferenceTimeout
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Noop{}
	}
	return o
}

// StreamState is a snapshot of one stream's progress.
type StreamState struct {
	SamplesCaptured   int64
	ChunksQueued      int
	ChunksTranscribed int
	ChunksFailed      int
	ChunksDropped     int
	SegmentsEmitted   int
	EndReason         string
}

// Stream is the lazy, ordered, non-restartable sequence of segments produced
// from one capture. Next must be called from a single goroutine.
type Stream struct {
	opts    StreamOptions
	engine  transcriber.Engine
	capture audio.Capture

	chunks      chan audio.Chunk
	pumpCancel  context.CancelFunc
	pumpDone    chan struct{}
	stopped     atomic.Bool
	closeOnce   sync.Once
	captureOnce sync.Once

	mu    sync.Mutex
	state StreamState

	pending   []transcriber.Segment
	nextIndex int
	err       error
}

// Open acquires the capture device and starts buffering. A device that
// cannot be opened is reported here and no goroutine is left behind.
func Open(ctx context.Context, source audio.Source, engine transcriber.Engine, opts StreamOptions) (*Stream, error) {
	opts = opts.withDefaults()
	switch opts.Overflow {
	case OverflowBlock, OverflowDropOldest:
	default:
		return nil, fmt.Errorf("unknown overflow policy %q", opts.Overflow)
	}
	buf, err := audio.NewChunkBuffer(opts.Chunking)
	if err != nil {
		return nil, err
	}
	capture, err := source.Open(ctx)
	if err != nil {
		return nil, err
	}
	if rate := capture.SampleRate(); rate != opts.Chunking.SampleRate {
		_ = capture.Close()
		return nil, fmt.Errorf("capture delivers %d Hz but chunking expects %d Hz", rate, opts.Chunking.SampleRate)
	}

	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Stream{
		opts:       opts,
		engine:     engine,
		capture:    capture,
		chunks:     make(chan audio.Chunk, opts.QueueSize),
		pumpCancel: cancel,
		pumpDone:   make(chan struct{}),
	}
	go s.pump(pumpCtx, buf)
	return s, nil
}

func (s *Stream) pump(ctx context.Context, buf *audio.ChunkBuffer) {
	defer close(s.pumpDone)
	defer close(s.chunks)
	defer s.closeCapture()

	reason := endReasonSourceEnded
	for {
		frame, err := s.capture.Read(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				slog.Warn("audio capture failed; treating as end of stream", "error", err)
				reason = fmt.Sprintf("audio source lost: %v", err)
			}
			break
		}
		s.mu.Lock()
		s.state.SamplesCaptured += int64(len(frame))
		s.mu.Unlock()
		s.opts.Metrics.SamplesCaptured(len(frame))
		for _, chunk := range buf.Write(frame) {
			if !s.enqueue(ctx, chunk) {
				s.setEndReason(endReasonAborted)
				return
			}
		}
	}
	if s.stopped.Load() {
		reason = endReasonStopped
	}
	slog.Debug("audio capture ended; flushing buffered samples", "reason", reason, "pending_samples", buf.Pending())
	if chunk, ok := buf.Flush(); ok {
		if !s.enqueue(ctx, chunk) {
			s.setEndReason(endReasonAborted)
			return
		}
	}
	s.setEndReason(reason)
}

func (s *Stream) enqueue(ctx context.Context, chunk audio.Chunk) bool {
	if s.opts.Overflow == OverflowDropOldest {
		for {
			select {
			case s.chunks <- chunk:
				s.markQueued()
				return true
			default:
			}
			select {
			case dropped := <-s.chunks:
				s.markDropped(dropped)
			default:
			}
			if ctx.Err() != nil {
				return false
			}
		}
	}

	select {
	case s.chunks <- chunk:
		s.markQueued()
		return true
	default:
	}
	slog.Warn("chunk queue full; pausing capture until transcription catches up", "queue_size", cap(s.chunks), "chunk_seq", chunk.Seq)
	s.opts.Metrics.QueueStalled()
	select {
	case s.chunks <- chunk:
		s.markQueued()
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Stream) markQueued() {
	s.mu.Lock()
	s.state.ChunksQueued++
	s.mu.Unlock()
	s.opts.Metrics.ChunkQueued()
}

func (s *Stream) markDropped(chunk audio.Chunk) {
	s.mu.Lock()
	s.state.ChunksDropped++
	s.mu.Unlock()
	s.opts.Metrics.ChunkDropped()
	slog.Warn("chunk queue overflow; dropped oldest chunk",
		"chunk_seq", chunk.Seq,
		"start", chunk.Start(),
		"end", chunk.End(),
		"samples", len(chunk.Samples))
}

func (s *Stream) setEndReason(reason string) {
	s.mu.Lock()
	s.state.EndReason = reason
	s.mu.Unlock()
}

// Next returns the next segment in source-time order. It blocks until a
// chunk is ready and transcribed, and returns io.EOF once the source has
// ended and every buffered chunk has been transcribed.
func (s *Stream) Next(ctx context.Context) (transcriber.Segment, error) {
	for {
		if len(s.pending) > 0 {
			seg := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Lock()
			s.state.SegmentsEmitted++
			s.mu.Unlock()
			s.opts.Metrics.SegmentEmitted(seg.Text == "")
			return seg, nil
		}
		if s.err != nil {
			return transcriber.Segment{}, s.err
		}

		var chunk audio.Chunk
		select {
		case <-ctx.Done():
			return transcriber.Segment{}, ctx.Err()
		case c, ok := <-s.chunks:
			if !ok {
				s.err = io.EOF
				continue
			}
			chunk = c
		}

		segs, err := s.transcribe(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				s.err = ctx.Err()
				continue
			}
			if transcriber.IsFatal(err) {
				s.err = fmt.Errorf("transcribe chunk %d: %w", chunk.Seq, err)
				continue
			}
			s.mu.Lock()
			s.state.ChunksFailed++
			s.mu.Unlock()
			s.opts.Metrics.ChunkFailed()
			slog.Warn("transcription failed; skipping chunk",
				"error", err,
				"chunk_seq", chunk.Seq,
				"start", chunk.Start(),
				"end", chunk.End())
			continue
		}
		s.mu.Lock()
		s.state.ChunksTranscribed++
		s.mu.Unlock()
		s.opts.Metrics.ChunkTranscribed()
		s.pending = s.order(chunk, segs)
	}
}

func (s *Stream) transcribe(ctx context.Context, chunk audio.Chunk) ([]transcriber.Segment, error) {
	ictx, cancel := context.WithTimeout(ctx, s.opts.InferenceTimeout)
	defer cancel()
	started := time.Now()
	segs, err := s.engine.Transcribe(ictx, chunk)
	s.opts.Metrics.InferenceObserved(time.Since(started))
	slog.Debug("chunk transcribed",
		"chunk_seq", chunk.Seq,
		"samples", len(chunk.Samples),
		"segments", len(segs),
		"elapsed", time.Since(started),
		"error", err)
	return segs, err
}

// order sorts one chunk's segments by source time and assigns transcript
// indices. A chunk that produced nothing still yields an empty segment so
// that every transcribed chunk is represented in the sequence.
func (s *Stream) order(chunk audio.Chunk, segs []transcriber.Segment) []transcriber.Segment {
	if len(segs) == 0 {
		segs = []transcriber.Segment{{Start: chunk.Start(), End: chunk.End()}}
	}
	out := make([]transcriber.Segment, len(segs))
	copy(out, segs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	for i := range out {
		out[i].ChunkSeq = chunk.Seq
		out[i].Index = s.nextIndex
		s.nextIndex++
	}
	return out
}

// Stop closes the capture. Buffered audio is still flushed and transcribed;
// Next keeps returning segments until io.EOF.
func (s *Stream) Stop() {
	s.stopped.Store(true)
	s.closeCapture()
}

// Close stops the stream, abandons audio not yet transcribed and waits for
// the capture goroutine to exit.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		s.Stop()
		s.pumpCancel()
		<-s.pumpDone
	})
}

func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) closeCapture() {
	s.captureOnce.Do(func() {
		if err := s.capture.Close(); err != nil {
			slog.Warn("failed to close audio capture", "error", err)
		}
	})
}
