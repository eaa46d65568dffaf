package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crosstalk/internal/domain"
	"crosstalk/internal/ports"
)

func TestFFMPEGCaptureStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'OggS'\nsleep 2\n")
	capture := NewFFMPEGCapture(script)

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if !strings.Contains(string(buf[:n]), "OggS") {
		t.Fatalf("unexpected bytes: %q", string(buf[:n]))
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestFFMPEGCaptureEarlyExitClassifiesPermission(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'default: Permission denied' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	var acqErr *domain.MediaAcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected media acquisition error, got %v", err)
	}
	if acqErr.Reason != domain.MediaFailurePermissionDenied {
		t.Fatalf("unexpected reason: %s", acqErr.Reason)
	}
}

func TestFFMPEGCaptureEarlyExitClassifiesMissingDevice(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "nodev.sh", "#!/usr/bin/env bash\necho 'hw:9: No such device' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script)

	_, err := capture.Start(context.Background(), ports.AudioConfig{})
	var acqErr *domain.MediaAcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected media acquisition error, got %v", err)
	}
	if acqErr.Reason != domain.MediaFailureNoDevice {
		t.Fatalf("unexpected reason: %s", acqErr.Reason)
	}
}

func TestClassifyCaptureFailure(t *testing.T) {
	t.Parallel()

	cases := []struct {
		stderr string
		want   domain.MediaFailureReason
	}{
		{"pulse: Access denied", domain.MediaFailurePermissionDenied},
		{"cannot find input device", domain.MediaFailureNoDevice},
		{"Connection refused", domain.MediaFailureNoDevice},
		{"something unexpected", domain.MediaFailureOther},
		{"", domain.MediaFailureOther},
	}
	for _, tc := range cases {
		if got := classifyCaptureFailure(tc.stderr); got != tc.want {
			t.Errorf("classifyCaptureFailure(%q) = %s, want %s", tc.stderr, got, tc.want)
		}
	}
}

func TestFFPlayPlaybackWriteAndClose(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "play.sh", "#!/usr/bin/env bash\ncat > /dev/null\n")
	playback := NewFFPlayPlayback(script)

	session, err := playback.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := session.Write([]byte("OggS")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	// Close is idempotent.
	if err := session.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
}

func TestFFPlayPlaybackEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "noout.sh", "#!/usr/bin/env bash\necho 'no audio output' 1>&2\nexit 1\n")
	playback := NewFFPlayPlayback(script)

	if _, err := playback.Start(context.Background()); err == nil {
		t.Fatal("expected early exit error")
	}
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
