package audio

import "testing"

func TestPCM16LERoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	out := DecodePCM16LE(EncodePCM16LE(in))
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, in[i], out[i])
		}
	}
}

func TestDownmixAndDecimate(t *testing.T) {
	stereo := []int16{100, 300, -200, -400, 10, 30}
	mono := DownmixInterleaved(stereo, 2)
	if len(mono) != 3 || mono[0] != 200 || mono[1] != -300 || mono[2] != 20 {
		t.Fatalf("unexpected downmix: %v", mono)
	}
	decimated := Decimate([]int16{3, 6, 9, 12, 15, 18, 1}, 3)
	if len(decimated) != 2 || decimated[0] != 6 || decimated[1] != 15 {
		t.Fatalf("unexpected decimation: %v", decimated)
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Fatal("expected zero rms for empty input")
	}
	if got := RMS([]int16{3, -3, 3, -3}); got != 3 {
		t.Fatalf("expected 3, got %f", got)
	}
}
