package audio

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
)

func readAll(t *testing.T, c audio.Capture) []int16 {
	t.Helper()
	var out []int16
	for {
		frame, err := c.Read(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		out = append(out, frame...)
	}
}

func TestMicFFmpegArgs(t *testing.T) {
	args, err := micFFmpegArgs("linux", "", 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := strings.Join(args, " ")
	if !strings.Contains(got, "-f pulse -i default") || !strings.HasSuffix(got, "-ac 1 -ar 16000 -f s16le -") {
		t.Fatalf("unexpected linux args: %s", got)
	}
	args, err = micFFmpegArgs("darwin", "", 16000)
	if err != nil || !strings.Contains(strings.Join(args, " "), "-f avfoundation -i :0") {
		t.Fatalf("unexpected darwin args: %v %v", args, err)
	}
	if _, err := micFFmpegArgs("plan9", "", 16000); err == nil {
		t.Fatal("expected error for unsupported platform")
	}
}

func TestMicFFmpegArgs_SelectsInputDevice(t *testing.T) {
	args, err := micFFmpegArgs("linux", "alsa_input.usb-mic.analog-stereo", 16000)
	if err != nil || !strings.Contains(strings.Join(args, " "), "-f pulse -i alsa_input.usb-mic.analog-stereo -ac 1") {
		t.Fatalf("unexpected linux args: %v %v", args, err)
	}
	for _, device := range []string{"2", ":2"} {
		args, err = micFFmpegArgs("darwin", device, 16000)
		if err != nil || !strings.Contains(strings.Join(args, " "), "-f avfoundation -i :2 -ac 1") {
			t.Fatalf("device %q: unexpected darwin args: %v %v", device, args, err)
		}
	}

	src, err := NewFFmpegSource("", "2", 16000, 20*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	other, err := NewFFmpegSource("", "3", 16000, 20*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.Key() == other.Key() {
		t.Fatalf("different input devices must not share a source key: %s", src.Key())
	}
}

func TestNewFFmpegSource_ParsesQuotedCommand(t *testing.T) {
	src, err := NewFFmpegSource(`ffmpeg -f alsa -i "hw:1,0" -f s16le -`, "", 16000, 20*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(src.args) != 8 || src.args[4] != "hw:1,0" {
		t.Fatalf("unexpected args: %q", src.args)
	}
	if src.Key() != `mic:ffmpeg -f alsa -i hw:1,0 -f s16le -` {
		t.Fatalf("unexpected key %q", src.Key())
	}
	if _, err := NewFFmpegSource(`ffmpeg "unterminated`, "", 16000, 20*time.Millisecond, time.Second); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFFmpegSource_ReadsFramesUntilExit(t *testing.T) {
	// 1000 zero samples: three full 320-sample frames and a 40-sample tail.
	src, err := NewFFmpegSource(`sh -c "head -c 2000 /dev/zero"`, "", 16000, 20*time.Millisecond, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer c.Close()

	if c.SampleRate() != 16000 {
		t.Fatalf("unexpected sample rate %d", c.SampleRate())
	}
	if got := len(readAll(t, c)); got != 1000 {
		t.Fatalf("expected 1000 samples, got %d", got)
	}
}

func TestFFmpegSource_FailingProcessIsUnavailable(t *testing.T) {
	src, err := NewFFmpegSource(`sh -c "echo 'no such device' >&2; exit 1"`, "", 16000, 20*time.Millisecond, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = src.Open(context.Background())
	if !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected device unavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "no such device") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestFFmpegSource_MissingBinaryIsUnavailable(t *testing.T) {
	src, err := NewFFmpegSource("kikitori-capture-does-not-exist", "", 16000, 20*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := src.Open(context.Background()); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected device unavailable, got %v", err)
	}
}

func TestFFmpegSource_SilentProcessTimesOut(t *testing.T) {
	src, err := NewFFmpegSource(`sleep 5`, "", 16000, 20*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	started := time.Now()
	if _, err := src.Open(context.Background()); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected device unavailable, got %v", err)
	}
	if time.Since(started) > 2*time.Second {
		t.Fatal("probe timeout did not kill the capture process")
	}
}

func TestFFmpegSource_CloseUnblocksRead(t *testing.T) {
	src, err := NewFFmpegSource(`sh -c "head -c 640 /dev/zero; exec sleep 5"`, "", 16000, 20*time.Millisecond, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := src.Open(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := c.Read(context.Background()); err != nil {
		t.Fatalf("expected probed frame, got %v", err)
	}
	done := make(chan error, 1)
	go func() {
		_, err := c.Read(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	_ = c.Close()
	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Fatalf("expected EOF after close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read did not unblock on close")
	}
}
