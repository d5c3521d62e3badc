package audio

import (
	"encoding/binary"
	"math"
)

func DecodePCM16LE(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func EncodePCM16LE(samples []int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

// RMS returns the root-mean-square amplitude of samples.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DownmixInterleaved averages interleaved channels into mono.
func DownmixInterleaved(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

// Decimate reduces the sample rate by an integer factor, averaging each group
// of factor samples.
func Decimate(samples []int16, factor int) []int16 {
	if factor <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/factor)
	for i := range out {
		var sum int32
		for j := 0; j < factor; j++ {
			sum += int32(samples[i*factor+j])
		}
		out[i] = int16(sum / int32(factor))
	}
	return out
}
