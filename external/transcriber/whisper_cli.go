package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/foxseedlab/kikitori/internal/transcriber"
	"github.com/mattn/go-shellwords"
)

const promptRuneLimit = 200

type WhisperCLIConfig struct {
	Command   string
	ModelPath string
	Language  string
}

// WhisperCLIEngine runs a whisper command once per chunk. The command gets
// the chunk as a WAV file and prints {"text", "segments"} JSON with times in
// seconds relative to the file.
type WhisperCLIEngine struct {
	args      []string
	modelPath string
	language  string
	prompt    string
}

type whisperCLIResult struct {
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func NewWhisperCLIEngine(cfg WhisperCLIConfig) (*WhisperCLIEngine, error) {
	args, err := shellwords.NewParser().Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse whisper command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("whisper command is empty")
	}
	if _, err := exec.LookPath(args[0]); err != nil {
		return nil, fmt.Errorf("%w: whisper command %q: %v", transcriber.ErrModelUnavailable, args[0], err)
	}
	return &WhisperCLIEngine{
		args:      args,
		modelPath: cfg.ModelPath,
		language:  cfg.Language,
	}, nil
}

func (e *WhisperCLIEngine) Transcribe(ctx context.Context, chunk audio.Chunk) ([]transcriber.Segment, error) {
	path, err := writeChunkWAV(chunk)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	cmdArgs := append([]string{}, e.args[1:]...)
	cmdArgs = append(cmdArgs, "--audio", path)
	if e.modelPath != "" {
		cmdArgs = append(cmdArgs, "--model", e.modelPath)
	}
	if e.language != "" {
		cmdArgs = append(cmdArgs, "--language", e.language)
	}
	if e.prompt != "" {
		cmdArgs = append(cmdArgs, "--prompt", e.prompt)
	}

	command := exec.CommandContext(ctx, e.args[0], cmdArgs...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, transcriber.Fatal(fmt.Errorf("whisper command: %w", err))
		}
		return nil, fmt.Errorf("whisper command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var result whisperCLIResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("decode whisper output: %w", err)
	}

	var segs []transcriber.Segment
	var texts []string
	for _, s := range result.Segments {
		text := strings.TrimSpace(s.Text)
		start, end := clampToChunk(chunk, secondsToDuration(s.Start), secondsToDuration(s.End))
		segs = append(segs, transcriber.Segment{Text: text, Start: start, End: end})
		if text != "" {
			texts = append(texts, text)
		}
	}
	if len(segs) == 0 {
		if text := strings.TrimSpace(result.Text); text != "" {
			segs = append(segs, transcriber.Segment{Text: text, Start: chunk.Start(), End: chunk.End()})
			texts = append(texts, text)
		}
	}
	e.prompt = rollingPrompt(e.prompt, strings.Join(texts, " "), promptRuneLimit)
	return segs, nil
}
