//go:build !opus

package audio

import (
	"log/slog"

	"github.com/foxseedlab/kikitori/internal/audio"
)

// noopMixer is used when the binary is built without libopus. Voice
// capture still keeps time but only ever produces silence.
type noopMixer struct{}

func NewOpusMixer() audio.Mixer {
	slog.Warn("built without opus support; discord voice capture will be silent (rebuild with -tags opus)")
	return &noopMixer{}
}

func (m *noopMixer) WriteOpusPacket(_ string, _ []byte) {}

func (m *noopMixer) ReadMixed(_ []int16) int {
	return 0
}

func (m *noopMixer) Close() {}
