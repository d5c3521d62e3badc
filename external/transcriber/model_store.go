package transcriber

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/foxseedlab/kikitori/internal/transcriber"
)

var ggmlModels = map[string]struct{}{
	"tiny":      {},
	"tiny.en":   {},
	"base":      {},
	"base.en":   {},
	"small":     {},
	"small.en":  {},
	"medium":    {},
	"medium.en": {},
	"large-v3":  {},
}

// IsGGMLModel reports whether id names one of the whisper.cpp model files.
func IsGGMLModel(id string) bool {
	_, ok := ggmlModels[id]
	return ok
}

// GGMLModelStore keeps whisper.cpp weights in a local directory and downloads
// missing ones on first use.
type GGMLModelStore struct {
	dir     string
	baseURL string
	client  *http.Client
	mu      sync.Mutex
}

func NewGGMLModelStore(dir, baseURL string, client *http.Client) *GGMLModelStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &GGMLModelStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (s *GGMLModelStore) Resolve(ctx context.Context, modelID string) (string, error) {
	if !IsGGMLModel(modelID) {
		return "", fmt.Errorf("%w: unknown model %q", transcriber.ErrModelUnavailable, modelID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	name := "ggml-" + modelID + ".bin"
	path := filepath.Join(s.dir, name)
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		return path, nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create model dir: %v", transcriber.ErrDownloadFailed, err)
	}
	url := s.baseURL + "/" + name
	slog.Info("downloading whisper model", "model", modelID, "url", url, "path", path)
	if err := s.download(ctx, url, path); err != nil {
		return "", fmt.Errorf("%w: %s: %v", transcriber.ErrDownloadFailed, modelID, err)
	}
	slog.Info("whisper model downloaded", "model", modelID, "path", path)
	return path, nil
}

func (s *GGMLModelStore) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(s.dir, ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
