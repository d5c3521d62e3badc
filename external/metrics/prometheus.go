package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace           = "kikitori"
	serverShutdownLimit = 5 * time.Second
)

// PrometheusRecorder exports pipeline counters on its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry
	server   *http.Server

	samplesCaptured   prometheus.Counter
	chunksQueued      prometheus.Counter
	chunksDropped     prometheus.Counter
	queueStalls       prometheus.Counter
	chunksTranscribed prometheus.Counter
	chunksFailed      prometheus.Counter
	inferenceDuration prometheus.Histogram
	segmentsEmitted   *prometheus.CounterVec
}

func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		registry: reg,
		samplesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_captured_total",
			Help:      "Audio samples read from the capture device",
		}),
		chunksQueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_queued_total",
			Help:      "Chunks handed to the transcription queue",
		}),
		chunksDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_dropped_total",
			Help:      "Chunks discarded because the queue was full",
		}),
		queueStalls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_stalls_total",
			Help:      "Times capture paused on a full queue",
		}),
		chunksTranscribed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_transcribed_total",
			Help:      "Chunks transcribed successfully",
		}),
		chunksFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_failed_total",
			Help:      "Chunks skipped after a recoverable engine error",
		}),
		inferenceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Time spent transcribing one chunk",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		segmentsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_emitted_total",
			Help:      "Segments delivered to the consumer",
		}, []string{"empty"}),
	}
}

func (r *PrometheusRecorder) SamplesCaptured(n int) { r.samplesCaptured.Add(float64(n)) }
func (r *PrometheusRecorder) ChunkQueued()          { r.chunksQueued.Inc() }
func (r *PrometheusRecorder) ChunkDropped()         { r.chunksDropped.Inc() }
func (r *PrometheusRecorder) QueueStalled()         { r.queueStalls.Inc() }

func (r *PrometheusRecorder) InferenceObserved(elapsed time.Duration) {
	r.inferenceDuration.Observe(elapsed.Seconds())
}

func (r *PrometheusRecorder) ChunkTranscribed() { r.chunksTranscribed.Inc() }
func (r *PrometheusRecorder) ChunkFailed()      { r.chunksFailed.Inc() }

func (r *PrometheusRecorder) SegmentEmitted(empty bool) {
	if empty {
		r.segmentsEmitted.WithLabelValues("true").Inc()
		return
	}
	r.segmentsEmitted.WithLabelValues("false").Inc()
}

func (r *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve starts the /metrics endpoint in the background.
func (r *PrometheusRecorder) Serve(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	r.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("metrics server listening", "addr", ln.Addr().String())
	return nil
}

func (r *PrometheusRecorder) Shutdown() error {
	if r.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownLimit)
	defer cancel()
	return r.server.Shutdown(ctx)
}
