package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"memoai/internal/domain"
	"memoai/internal/ports"
)

const (
	defaultSampleRate = 16000
	startupProbe      = 250 * time.Millisecond
	stopGrace         = 1200 * time.Millisecond
)

// FFMPEGCapture streams microphone PCM16LE audio by shelling out to ffmpeg.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

// defaultInputFormat picks the ffmpeg input backend for the host platform.
func defaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

func defaultInputDevice(format string) string {
	if format == "avfoundation" {
		return ":0"
	}
	return "default"
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = defaultInputFormat()
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = defaultInputDevice(cfg.InputFormat)
	}

	if _, err := exec.LookPath(c.command); err != nil {
		return nil, fmt.Errorf("%w: %s not found", domain.ErrDeviceUnavailable, c.command)
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.command, err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// An input-device problem makes ffmpeg exit within milliseconds; a
	// healthy capture keeps running well past the probe window.
	select {
	case err := <-waitErr:
		return nil, classifyStartupExit(err, stderr.String())
	case <-time.After(startupProbe):
	}

	return &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

// classifyStartupExit distinguishes a missing or busy input device from
// every other early ffmpeg exit.
func classifyStartupExit(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	lowered := strings.ToLower(detail)
	for _, marker := range []string{
		"no such device",
		"device or resource busy",
		"input/output error",
		"cannot open audio device",
		"audio device not found",
		"does not support",
	} {
		if strings.Contains(lowered, marker) {
			return fmt.Errorf("%w: %s", domain.ErrDeviceUnavailable, detail)
		}
	}
	if err != nil {
		return fmt.Errorf("capture process exited before audio started: %w: %s", err, detail)
	}
	return fmt.Errorf("capture process exited before audio started: %s", detail)
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts the capture process, escalating to a kill when it does not
// exit within the grace period. An exit-status error from the interrupted
// process is expected and suppressed.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = suppressExitStatus(err)
			}
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = suppressExitStatus(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})

	return s.stopErr
}

func suppressExitStatus(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
