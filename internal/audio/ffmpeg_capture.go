// Package audio adapts local capture and playback subprocesses to the ports
// the rest of the app consumes.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"crosstalk/internal/domain"
	"crosstalk/internal/ports"
)

// FFMPEGCapture streams the microphone as ogg/opus using ffmpeg. Opus pages
// go straight onto the peer connection without re-encoding.
type FFMPEGCapture struct {
	command string
}

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "libopus",
		"-b:a", "64k",
		"-application", "voip",
		"-page_duration", "20000",
		"-f", "ogg",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &domain.MediaAcquisitionError{Reason: domain.MediaFailureOther, Err: fmt.Errorf("create ffmpeg stdout pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return nil, &domain.MediaAcquisitionError{Reason: domain.MediaFailureOther, Err: fmt.Errorf("start ffmpeg: %w", err)}
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := strings.TrimSpace(stderr.String())
		if err == nil {
			err = errors.New("ffmpeg exited before capture started")
		} else {
			err = fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail)
		}
		return nil, &domain.MediaAcquisitionError{Reason: classifyCaptureFailure(detail), Err: err}
	case <-time.After(250 * time.Millisecond):
	}

	return &ffmpegSession{
		stdout:  stdout,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

// classifyCaptureFailure maps ffmpeg's stderr noise to the failure reasons
// the UI distinguishes between.
func classifyCaptureFailure(stderr string) domain.MediaFailureReason {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "access denied"):
		return domain.MediaFailurePermissionDenied
	case strings.Contains(lower, "no such"), strings.Contains(lower, "device not found"),
		strings.Contains(lower, "cannot find"), strings.Contains(lower, "connection refused"):
		return domain.MediaFailureNoDevice
	default:
		return domain.MediaFailureOther
	}
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

func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
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

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
