package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
)

const (
	loopGraceful = "trap 'exit 0' INT; while true; do sleep 0.05; done"
	loopStubborn = "trap '' INT; while true; do sleep 0.05; done"
)

func newShell(t *testing.T, script string, cfg Config) *Controller {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	cfg.Command = "/bin/sh"
	cfg.Args = []string{"-c", script}
	if cfg.Probe == 0 {
		cfg.Probe = 100 * time.Millisecond
	}
	c := New(cfg, zap.NewNop())
	t.Cleanup(func() { c.Shutdown(context.Background()) })
	return c
}

func TestStartStop_Graceful(t *testing.T) {
	c := newShell(t, loopGraceful, Config{StopTimeout: 3 * time.Second})
	ctx := context.Background()

	pid, err := c.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("expected positive pid, got %d", pid)
	}
	running, gotPID := c.Status()
	if !running || gotPID != pid {
		t.Fatalf("Status = (%v, %d), want (true, %d)", running, gotPID, pid)
	}

	stopped, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped != pid {
		t.Errorf("Stop pid = %d, want %d", stopped, pid)
	}
	if running, _ := c.Status(); running {
		t.Error("expected not running after stop")
	}
	if c.State() != StateStopped {
		t.Errorf("state = %s, want stopped", c.State())
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := newShell(t, loopGraceful, Config{})
	ctx := context.Background()

	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_, err := c.Start(ctx)
	if !errors.Is(err, domain.ErrCaptureAlreadyRunning) {
		t.Fatalf("expected ErrCaptureAlreadyRunning, got %v", err)
	}
}

func TestStop_NotRunning(t *testing.T) {
	c := New(Config{Command: "/bin/sh"}, zap.NewNop())
	_, err := c.Stop(context.Background())
	if !errors.Is(err, domain.ErrCaptureNotRunning) {
		t.Fatalf("expected ErrCaptureNotRunning, got %v", err)
	}
}

func TestStop_KillsAfterTimeout(t *testing.T) {
	c := newShell(t, loopStubborn, Config{StopTimeout: 200 * time.Millisecond})
	ctx := context.Background()

	pid, err := c.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	start := time.Now()
	stopped, err := c.Stop(ctx)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if stopped != pid {
		t.Errorf("Stop pid = %d, want %d", stopped, pid)
	}
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("stop returned after %v, expected to wait for the timeout", elapsed)
	}
	if running, _ := c.Status(); running {
		t.Error("expected not running after kill")
	}
}

func TestStart_ExitedEarly(t *testing.T) {
	c := newShell(t, "echo boom >&2; exit 3", Config{Probe: 500 * time.Millisecond})

	_, err := c.Start(context.Background())
	if !errors.Is(err, domain.ErrCaptureExitedEarly) {
		t.Fatalf("expected ErrCaptureExitedEarly, got %v", err)
	}
	var ce *domain.CaptureError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CaptureError, got %T", err)
	}
	if ce.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", ce.ExitCode)
	}
	if !strings.Contains(ce.Output, "boom") {
		t.Errorf("output = %q, want it to contain boom", ce.Output)
	}
	if c.State() != StateStopped {
		t.Errorf("state = %s, want stopped", c.State())
	}
}

func TestStart_ArtifactMissing(t *testing.T) {
	c := New(Config{Command: "/bin/sh", Artifact: "/nonexistent/capture/script.py"}, zap.NewNop())
	_, err := c.Start(context.Background())
	if !errors.Is(err, domain.ErrCaptureArtifactMissing) {
		t.Fatalf("expected ErrCaptureArtifactMissing, got %v", err)
	}
}

func TestStart_CommandNotInPath(t *testing.T) {
	c := New(Config{Command: "recall-no-such-binary"}, zap.NewNop())
	_, err := c.Start(context.Background())
	if !errors.Is(err, domain.ErrCaptureArtifactMissing) {
		t.Fatalf("expected ErrCaptureArtifactMissing, got %v", err)
	}
}

func TestStatus_ReapsSelfExit(t *testing.T) {
	c := newShell(t, "sleep 0.3; exit 0", Config{Probe: 50 * time.Millisecond})
	ctx := context.Background()

	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if running, _ := c.Status(); !running {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if running, _ := c.Status(); running {
		t.Fatal("expected self-exited process to be reaped")
	}
	if _, err := c.Stop(ctx); !errors.Is(err, domain.ErrCaptureNotRunning) {
		t.Fatalf("expected ErrCaptureNotRunning, got %v", err)
	}
	if _, err := c.Start(ctx); err != nil {
		t.Fatalf("restart after self-exit: %v", err)
	}
}

func TestStart_BusyDuringProbe(t *testing.T) {
	c := newShell(t, loopGraceful, Config{Probe: 400 * time.Millisecond})
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := c.Start(ctx)
		first <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for c.State() != StateStarting && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := c.Start(ctx); !errors.Is(err, domain.ErrCaptureBusy) {
		t.Fatalf("expected ErrCaptureBusy, got %v", err)
	}
	if _, err := c.Stop(ctx); !errors.Is(err, domain.ErrCaptureBusy) {
		t.Fatalf("expected ErrCaptureBusy on stop, got %v", err)
	}
	if err := <-first; err != nil {
		t.Fatalf("first Start: %v", err)
	}
}

func TestShutdown_Idle(t *testing.T) {
	c := New(Config{Command: "/bin/sh"}, zap.NewNop())
	c.Shutdown(context.Background())
	if c.State() != StateStopped {
		t.Errorf("state = %s, want stopped", c.State())
	}
}

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(8)
	_, _ = b.Write([]byte("hello"))
	_, _ = b.Write([]byte(" world"))
	if got := b.String(); got != "lo world" {
		t.Errorf("tail = %q, want %q", got, "lo world")
	}
	_, _ = b.Write([]byte("0123456789"))
	if got := b.String(); got != "23456789" {
		t.Errorf("tail = %q, want %q", got, "23456789")
	}
}

func TestStartStop_Concurrent(t *testing.T) {
	c := newShell(t, loopGraceful, Config{Probe: 50 * time.Millisecond, StopTimeout: 2 * time.Second})
	ctx := context.Background()

	for i := range 10 {
		if _, err := c.Start(ctx); err != nil {
			t.Fatalf("round %d Start: %v", i, err)
		}

		var wg sync.WaitGroup
		var startErr, stopErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, startErr = c.Start(ctx)
		}()
		go func() {
			defer wg.Done()
			_, stopErr = c.Stop(ctx)
		}()
		wg.Wait()

		if startErr != nil &&
			!errors.Is(startErr, domain.ErrCaptureAlreadyRunning) &&
			!errors.Is(startErr, domain.ErrCaptureBusy) {
			t.Fatalf("round %d concurrent Start: %v", i, startErr)
		}
		if stopErr != nil && !errors.Is(stopErr, domain.ErrCaptureBusy) {
			t.Fatalf("round %d concurrent Stop: %v", i, stopErr)
		}

		// leave the controller stopped for the next round
		for c.State() != StateStopped {
			if _, err := c.Stop(ctx); err != nil && !errors.Is(err, domain.ErrCaptureBusy) &&
				!errors.Is(err, domain.ErrCaptureNotRunning) {
				t.Fatalf("round %d cleanup Stop: %v", i, err)
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestStop_CancelledContextStillGraceful(t *testing.T) {
	mark := filepath.Join(t.TempDir(), "stopped")
	script := fmt.Sprintf("trap 'echo bye > %s; exit 0' INT; while true; do sleep 0.05; done", mark)
	c := newShell(t, script, Config{StopTimeout: 3 * time.Second})

	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	data, err := os.ReadFile(mark)
	if err != nil {
		t.Fatalf("interrupt handler did not run: %v", err)
	}
	if strings.TrimSpace(string(data)) != "bye" {
		t.Errorf("marker = %q", data)
	}
}

func TestStart_ArtifactRelativeToWorkdir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "capture.py"), []byte("print('x')\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	c := newShell(t, loopGraceful, Config{Workdir: dir, Artifact: "capture.py"})
	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start with artifact in workdir: %v", err)
	}

	missing := New(Config{Command: "/bin/sh", Workdir: dir, Artifact: "other.py"}, zap.NewNop())
	_, err := missing.Start(context.Background())
	if !errors.Is(err, domain.ErrCaptureArtifactMissing) {
		t.Fatalf("expected ErrCaptureArtifactMissing, got %v", err)
	}
	if !strings.Contains(err.Error(), filepath.Join(dir, "other.py")) {
		t.Errorf("error should name the resolved path, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("é", outputPreview+50)
	got := preview(long)
	if !utf8.ValidString(got) {
		t.Fatalf("preview is not valid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n != outputPreview {
		t.Errorf("preview runes = %d, want %d", n, outputPreview)
	}

	head := "Traceback: boom " + strings.Repeat("x", 400)
	if got := preview(head); !strings.HasPrefix(got, "Traceback: boom") {
		t.Errorf("preview should keep the start of the output, got %q", got[:20])
	}

	if got := preview("\xa9 short\n"); got != "short" {
		t.Errorf("preview = %q, want %q", got, "short")
	}
}
