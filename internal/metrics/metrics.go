package metrics

import "time"

type Recorder interface {
	SamplesCaptured(n int)
	ChunkQueued()
	ChunkDropped()
	QueueStalled()
	InferenceObserved(elapsed time.Duration)
	// ChunkTranscribed and ChunkFailed mirror StreamState: a failed chunk is
	// one skipped after a recoverable engine error.
	ChunkTranscribed()
	ChunkFailed()
	SegmentEmitted(empty bool)
}

type Noop struct{}

func (Noop) SamplesCaptured(int)             {}
func (Noop) ChunkQueued()                    {}
func (Noop) ChunkDropped()                   {}
func (Noop) QueueStalled()                   {}
func (Noop) InferenceObserved(time.Duration) {}
func (Noop) ChunkTranscribed()               {}
func (Noop) ChunkFailed()                    {}
func (Noop) SegmentEmitted(bool)             {}
