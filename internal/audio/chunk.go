package audio

import "time"

// Chunk is a contiguous run of samples handed to a transcription engine.
// StartSample is the absolute offset since capture start, so chunk timing is
// derived from sample counts rather than wall-clock time.
type Chunk struct {
	Seq         int
	StartSample int64
	Samples     []int16
	SampleRate  int
	Final       bool
}

func (c Chunk) Start() time.Duration {
	return samplesToDuration(c.StartSample, c.SampleRate)
}

func (c Chunk) End() time.Duration {
	return samplesToDuration(c.StartSample+int64(len(c.Samples)), c.SampleRate)
}

func (c Chunk) Duration() time.Duration {
	return samplesToDuration(int64(len(c.Samples)), c.SampleRate)
}

func (c Chunk) EndSample() int64 {
	return c.StartSample + int64(len(c.Samples))
}

func samplesToDuration(n int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}

// DurationToSamples converts d to a sample count at sampleRate, truncating.
func DurationToSamples(d time.Duration, sampleRate int) int {
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}
