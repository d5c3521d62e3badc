package audio

import (
	"context"
	"errors"
)

var (
	// ErrDeviceUnavailable is returned by Source.Open when no capture device
	// exists or access to it was denied.
	ErrDeviceUnavailable = errors.New("audio capture device unavailable")
	// ErrDeviceLost is returned by Capture.Read when the device disappears
	// mid-stream. Streams treat it as the end of the audio.
	ErrDeviceLost = errors.New("audio capture device lost")
)

// Frame is a run of 16-bit mono PCM samples as delivered by a capture.
type Frame []int16

type Source interface {
	// Key identifies the physical device so that two sessions never capture
	// from it at the same time.
	Key() string
	Open(ctx context.Context) (Capture, error)
}

// Capture is an open, non-restartable capture session. Read returns io.EOF
// once the device is closed or the input is exhausted. Close releases the
// device and unblocks a pending Read.
type Capture interface {
	Read(ctx context.Context) (Frame, error)
	SampleRate() int
	Close() error
}
