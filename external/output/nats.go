package output

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/kikitori/internal/output"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/nats-io/nats.go"
)

const (
	natsConnectTimeout = 5 * time.Second
	natsFlushTimeout   = 5 * time.Second
)

// NATSSink publishes every segment as JSON on one subject.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("kikitori"),
		nats.Timeout(natsConnectTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	slog.Info("connected to NATS", "url", conn.ConnectedUrlRedacted(), "subject", subject)
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Emit(_ context.Context, seg transcriber.Segment) error {
	b, err := json.Marshal(output.NewSegmentRecord(seg))
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, b); err != nil {
		return fmt.Errorf("publish segment %d: %w", seg.Index, err)
	}
	return nil
}

// Close flushes pending publishes and closes the connection. A ctx without a
// deadline is bounded by natsFlushTimeout.
func (s *NATSSink) Close(ctx context.Context) error {
	defer s.conn.Close()
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, natsFlushTimeout)
		defer cancel()
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}
