package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/kikitori/internal/audio"
	"github.com/mattn/go-shellwords"
)

const stderrTailBytes = 2048

// FFmpegSource captures the default microphone through an ffmpeg child
// process that writes raw s16le mono PCM to stdout.
type FFmpegSource struct {
	args         []string
	sampleRate   int
	frameSamples int
	probeTimeout time.Duration
}

// NewFFmpegSource builds a microphone source. An empty command captures
// device (the platform default input when empty) through ffmpeg; otherwise
// command is parsed with shell quoting rules and must write s16le mono PCM at
// sampleRate to stdout.
func NewFFmpegSource(command, device string, sampleRate int, frame, probeTimeout time.Duration) (*FFmpegSource, error) {
	var (
		args []string
		err  error
	)
	if strings.TrimSpace(command) == "" {
		args, err = micFFmpegArgs(runtime.GOOS, device, sampleRate)
	} else {
		args, err = shellwords.NewParser().Parse(command)
		if err == nil && len(args) == 0 {
			err = errors.New("capture command is empty")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	frameSamples := audio.DurationToSamples(frame, sampleRate)
	if frameSamples <= 0 {
		return nil, fmt.Errorf("capture frame %s is too short for %d Hz", frame, sampleRate)
	}
	return &FFmpegSource{
		args:         args,
		sampleRate:   sampleRate,
		frameSamples: frameSamples,
		probeTimeout: probeTimeout,
	}, nil
}

// micFFmpegArgs builds the capture command for goos. device is a PulseAudio
// source name on linux and an avfoundation audio device index or name on
// darwin.
func micFFmpegArgs(goos, device string, sampleRate int) ([]string, error) {
	device = strings.TrimSpace(device)
	var input []string
	switch goos {
	case "darwin":
		if device == "" {
			device = "0"
		}
		input = []string{"-f", "avfoundation", "-i", ":" + strings.TrimPrefix(device, ":")}
	case "linux":
		if device == "" {
			device = "default"
		}
		input = []string{"-f", "pulse", "-i", device}
	default:
		return nil, fmt.Errorf("microphone capture is not implemented for %s; set AUDIO_CAPTURE_COMMAND", goos)
	}
	args := []string{"ffmpeg", "-hide_banner", "-loglevel", "error", "-nostdin"}
	args = append(args, input...)
	return append(args, "-ac", "1", "-ar", strconv.Itoa(sampleRate), "-f", "s16le", "-"), nil
}

func (s *FFmpegSource) Key() string {
	return "mic:" + strings.Join(s.args, " ")
}

func (s *FFmpegSource) Open(ctx context.Context) (audio.Capture, error) {
	if _, err := exec.LookPath(s.args[0]); err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", audio.ErrDeviceUnavailable, s.args[0], err)
	}
	cmd := exec.Command(s.args[0], s.args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open capture stdout: %w", err)
	}
	stderr := &stderrTail{}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start capture: %v", audio.ErrDeviceUnavailable, err)
	}
	slog.Info("microphone capture process started", "command", s.args[0], "pid", cmd.Process.Pid, "sample_rate", s.sampleRate)

	c := &ffmpegCapture{
		cmd:        cmd,
		stdout:     stdout,
		stderr:     stderr,
		sampleRate: s.sampleRate,
		buf:        make([]byte, s.frameSamples*2),
	}

	// A capture that cannot deliver its first frame in time is treated as
	// a missing or inaccessible device.
	type probeResult struct {
		frame audio.Frame
		err   error
	}
	probe := make(chan probeResult, 1)
	go func() {
		frame, err := c.readFrame()
		probe <- probeResult{frame: frame, err: err}
	}()
	timer := time.NewTimer(s.probeTimeout)
	defer timer.Stop()
	select {
	case r := <-probe:
		if r.err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("%w: capture produced no audio: %s", audio.ErrDeviceUnavailable, stderr.String())
		}
		c.first = r.frame
	case <-timer.C:
		_ = c.Close()
		<-probe
		return nil, fmt.Errorf("%w: no audio within %s: %s", audio.ErrDeviceUnavailable, s.probeTimeout, stderr.String())
	case <-ctx.Done():
		_ = c.Close()
		<-probe
		return nil, ctx.Err()
	}
	return c, nil
}

type ffmpegCapture struct {
	cmd        *exec.Cmd
	stdout     io.ReadCloser
	stderr     *stderrTail
	sampleRate int
	buf        []byte
	first      audio.Frame
	closed     atomic.Bool
	closeOnce  sync.Once
	waitOnce   sync.Once
	exitCode   int
}

func (c *ffmpegCapture) Read(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.first != nil {
		f := c.first
		c.first = nil
		return f, nil
	}
	return c.readFrame()
}

func (c *ffmpegCapture) readFrame() (audio.Frame, error) {
	n, err := io.ReadFull(c.stdout, c.buf)
	if n >= 2 {
		return audio.Frame(audio.DecodePCM16LE(c.buf[:n-n%2])), nil
	}
	if c.closed.Load() {
		return nil, io.EOF
	}
	if err == nil || errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	if errors.Is(err, io.EOF) {
		if code := c.wait(); code != 0 {
			return nil, fmt.Errorf("%w: capture exited with code %d: %s", audio.ErrDeviceLost, code, c.stderr.String())
		}
		return nil, io.EOF
	}
	return nil, fmt.Errorf("%w: %v", audio.ErrDeviceLost, err)
}

func (c *ffmpegCapture) SampleRate() int {
	return c.sampleRate
}

func (c *ffmpegCapture) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.stdout.Close()
		c.wait()
		slog.Info("microphone capture process stopped", "pid", c.cmd.Process.Pid)
	})
	return nil
}

// wait reaps the child process once and returns its exit code.
func (c *ffmpegCapture) wait() int {
	c.waitOnce.Do(func() {
		_ = c.cmd.Wait()
		c.exitCode = c.cmd.ProcessState.ExitCode()
	})
	return c.exitCode
}

// stderrTail keeps the last few kilobytes written by the capture process so
// that device errors can be reported.
type stderrTail struct {
	mu  sync.Mutex
	buf []byte
}

func (t *stderrTail) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > stderrTailBytes {
		t.buf = t.buf[len(t.buf)-stderrTailBytes:]
	}
	return len(p), nil
}

func (t *stderrTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
