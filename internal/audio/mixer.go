package audio

import "time"

// Voice channel audio is 48 kHz stereo opus in 20 ms packets.
const (
	VoiceSampleRate    = 48000
	VoiceChannels      = 2
	VoiceFrameDuration = 20 * time.Millisecond
	VoiceFrameSamples  = VoiceSampleRate * VoiceChannels * int(VoiceFrameDuration/time.Millisecond) / 1000
)

// Mixer decodes per-speaker opus packets and sums them into one stream.
type Mixer interface {
	WriteOpusPacket(userID string, packet []byte)
	// ReadMixed fills out with one interleaved voice frame and reports how
	// many samples were written. Zero means nobody spoke during the frame.
	ReadMixed(out []int16) int
	Close()
}

type MixerFactory func() Mixer
