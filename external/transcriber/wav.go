package transcriber

import (
	"fmt"
	"os"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavBitDepth = 16

// writeChunkWAV stores chunk as a mono 16-bit WAV file in the temp directory
// and returns its path. The caller removes the file.
func writeChunkWAV(chunk audio.Chunk) (string, error) {
	file, err := os.CreateTemp("", "kikitori_chunk_*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	path := file.Name()

	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: chunk.SampleRate},
		Data:           make([]int, len(chunk.Samples)),
		SourceBitDepth: wavBitDepth,
	}
	for i, s := range chunk.Samples {
		buffer.Data[i] = int(s)
	}

	enc := wav.NewEncoder(file, chunk.SampleRate, wavBitDepth, 1, 1)
	if err := enc.Write(buffer); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("close wav encoder: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close wav file: %w", err)
	}
	return path, nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// clampToChunk converts an engine-relative range into capture time and keeps
// it inside the chunk that produced it.
func clampToChunk(chunk audio.Chunk, start, end time.Duration) (time.Duration, time.Duration) {
	absStart := chunk.Start() + max(start, 0)
	absEnd := chunk.Start() + max(end, 0)
	absStart = min(absStart, chunk.End())
	absEnd = min(max(absEnd, absStart), chunk.End())
	return absStart, absEnd
}

// rollingPrompt keeps the tail of the previous transcript so the next chunk
// is decoded with some context.
func rollingPrompt(prev, text string, limit int) string {
	joined := prev
	if text != "" {
		if joined != "" {
			joined += " "
		}
		joined += text
	}
	runes := []rune(joined)
	if len(runes) > limit {
		runes = runes[len(runes)-limit:]
	}
	return string(runes)
}
