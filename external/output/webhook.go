package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/foxseedlab/kikitori/internal/output"
	"github.com/foxseedlab/kikitori/internal/transcriber"
)

const webhookTimeout = 10 * time.Second

// WebhookSink POSTs every segment as a JSON object.
type WebhookSink struct {
	webhookURL    string
	client        *http.Client
	suppressEmpty bool
}

func NewWebhookSink(webhookURL string, suppressEmpty bool) *WebhookSink {
	return &WebhookSink{
		webhookURL:    webhookURL,
		client:        &http.Client{Timeout: webhookTimeout},
		suppressEmpty: suppressEmpty,
	}
}

func (s *WebhookSink) Emit(ctx context.Context, seg transcriber.Segment) error {
	if s.webhookURL == "" || (s.suppressEmpty && seg.Text == "") {
		return nil
	}

	b, err := json.Marshal(output.NewSegmentRecord(seg))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post segment %d: %w", seg.Index, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *WebhookSink) Close(context.Context) error {
	s.client.CloseIdleConnections()
	return nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
