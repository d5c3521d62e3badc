//go:build opus

package audio

import (
	"log/slog"
	"sync"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/hraban/opus"
)

// maxQueuedFrames bounds each speaker's backlog; older frames are dropped
// when a speaker's packets arrive faster than the mixer is read.
const maxQueuedFrames = 50

type OpusMixer struct {
	mu       sync.Mutex
	decoders map[string]*opus.Decoder
	queues   map[string]*frameQueue
	closed   bool
}

type frameQueue struct {
	frames [][]int16
}

func (q *frameQueue) push(frame []int16) {
	if len(q.frames) >= maxQueuedFrames {
		q.frames = q.frames[1:]
	}
	q.frames = append(q.frames, frame)
}

func (q *frameQueue) pop() ([]int16, bool) {
	if len(q.frames) == 0 {
		return nil, false
	}
	f := q.frames[0]
	q.frames = q.frames[1:]
	return f, true
}

func NewOpusMixer() audio.Mixer {
	return &OpusMixer{
		decoders: make(map[string]*opus.Decoder),
		queues:   make(map[string]*frameQueue),
	}
}

func (m *OpusMixer) WriteOpusPacket(userID string, packet []byte) {
	if len(packet) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	dec, ok := m.decoders[userID]
	if !ok {
		var err error
		dec, err = opus.NewDecoder(audio.VoiceSampleRate, audio.VoiceChannels)
		if err != nil {
			slog.Warn("failed to create opus decoder", "error", err, "user_id", userID)
			return
		}
		m.decoders[userID] = dec
		m.queues[userID] = &frameQueue{}
	}
	pcm := make([]int16, audio.VoiceFrameSamples)
	n, err := dec.Decode(packet, pcm)
	if err != nil {
		slog.Debug("failed to decode opus packet", "error", err, "user_id", userID, "packet_bytes", len(packet))
		return
	}
	if n > 0 {
		m.queues[userID].push(pcm[:min(n*audio.VoiceChannels, audio.VoiceFrameSamples)])
	}
}

func (m *OpusMixer) ReadMixed(out []int16) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0
	}
	size := min(len(out), audio.VoiceFrameSamples)
	clear(out[:size])
	mixed := false
	for _, q := range m.queues {
		frame, ok := q.pop()
		if !ok {
			continue
		}
		mixed = true
		for i := 0; i < len(frame) && i < size; i++ {
			out[i] = clampPCM(int32(out[i]) + int32(frame[i]))
		}
	}
	if !mixed {
		return 0
	}
	return size
}

func clampPCM(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func (m *OpusMixer) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.decoders = nil
	m.queues = nil
}
