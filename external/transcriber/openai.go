package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/sashabaranov/go-openai"
)

type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
}

type transcriptionClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAIEngine uploads each chunk to the audio transcription endpoint of an
// OpenAI compatible API.
type OpenAIEngine struct {
	client   transcriptionClient
	model    string
	language string
	prompt   string
}

func NewOpenAIEngine(cfg OpenAIConfig) *OpenAIEngine {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" || IsGGMLModel(model) {
		model = openai.Whisper1
	}
	return &OpenAIEngine{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    model,
		language: cfg.Language,
	}
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, chunk audio.Chunk) ([]transcriber.Segment, error) {
	path, err := writeChunkWAV(chunk)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: path,
		Prompt:   e.prompt,
		Language: e.language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		if isPermanentOpenAIError(err) {
			return nil, transcriber.Fatal(fmt.Errorf("openai transcription: %w", err))
		}
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	var segs []transcriber.Segment
	for _, s := range resp.Segments {
		start, end := clampToChunk(chunk, secondsToDuration(s.Start), secondsToDuration(s.End))
		segs = append(segs, transcriber.Segment{Text: strings.TrimSpace(s.Text), Start: start, End: end})
	}
	text := strings.TrimSpace(resp.Text)
	if len(segs) == 0 && text != "" {
		segs = append(segs, transcriber.Segment{Text: text, Start: chunk.Start(), End: chunk.End()})
	}
	e.prompt = rollingPrompt(e.prompt, text, promptRuneLimit)
	return segs, nil
}

func isPermanentOpenAIError(err error) bool {
	code := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		code = reqErr.HTTPStatusCode
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return true
	default:
		return false
	}
}
