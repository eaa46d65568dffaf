package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"crosstalk/internal/ports"
)

// FFPlayPlayback renders the remote ogg/opus stream by piping it into an
// ffplay subprocess. Start fails when no audio output is reachable, which
// callers surface as a resumable playback block rather than a dead call.
type FFPlayPlayback struct {
	command string
}

func NewFFPlayPlayback(command string) *FFPlayPlayback {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayback{command: command}
}

func (p *FFPlayPlayback) Start(ctx context.Context) (ports.PlaybackSession, error) {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-nodisp",
		"-autoexit",
		"-i", "-",
	}

	cmd := exec.CommandContext(ctx, p.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create playback stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start playback: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// ffplay exits immediately when it cannot open an output device.
	select {
	case err := <-waitErr:
		detail := strings.TrimSpace(stderr.String())
		if err == nil {
			return nil, fmt.Errorf("playback exited before rendering started: %s", detail)
		}
		return nil, fmt.Errorf("playback exited before rendering started: %w: %s", err, detail)
	case <-time.After(250 * time.Millisecond):
	}

	return &ffplaySession{
		stdin:   stdin,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffplaySession struct {
	stdin io.WriteCloser

	process *os.Process
	waitErr <-chan error

	closeOnce sync.Once
	closeErr  error
}

func (s *ffplaySession) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *ffplaySession) Close() error {
	s.closeOnce.Do(func() {
		if err := s.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			s.closeErr = err
		}

		select {
		case err, ok := <-s.waitErr:
			if ok && s.closeErr == nil {
				s.closeErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok && s.closeErr == nil {
				s.closeErr = normalizeStopErr(err)
			}
		}
	})

	return s.closeErr
}
