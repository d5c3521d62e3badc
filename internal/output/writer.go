package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/foxseedlab/kikitori/internal/transcriber"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q", s)
	}
}

// Writer prints segments incrementally. In text mode each segment is a line
// and silent segments may be suppressed; JSON mode writes one object per
// line and keeps every segment.
type Writer struct {
	mu            sync.Mutex
	w             io.Writer
	format        Format
	suppressEmpty bool
}

func NewWriter(w io.Writer, format Format, suppressEmpty bool) *Writer {
	return &Writer{w: w, format: format, suppressEmpty: suppressEmpty}
}

func (w *Writer) Emit(_ context.Context, seg transcriber.Segment) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.format == FormatJSON {
		b, err := json.Marshal(NewSegmentRecord(seg))
		if err != nil {
			return err
		}
		b = append(b, '\n')
		_, err = w.w.Write(b)
		return err
	}
	text := strings.TrimSpace(seg.Text)
	if text == "" && w.suppressEmpty {
		return nil
	}
	_, err := fmt.Fprintln(w.w, text)
	return err
}

func (w *Writer) Close(_ context.Context) error {
	if f, ok := w.w.(interface{ Sync() error }); ok {
		_ = f.Sync()
	}
	return nil
}
