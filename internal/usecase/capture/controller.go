// Package capture supervises the single external capture process.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

const (
	// DefaultProbe is how long Start waits before checking the child is still alive.
	DefaultProbe = time.Second
	// DefaultStopTimeout is how long Stop waits after the interrupt before killing.
	DefaultStopTimeout = 5 * time.Second

	defaultOutputLimit = 4096
	outputPreview      = 200
	pipeWaitDelay      = 2 * time.Second
)

// State is the lifecycle position of the capture process.
type State string

// Lifecycle states.
const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Config describes how to launch the capture program.
type Config struct {
	Command string
	Args    []string
	Workdir string
	// Artifact is the program file that must exist; empty means Command is looked up in PATH.
	Artifact    string
	Probe       time.Duration
	StopTimeout time.Duration
	OutputLimit int
}

type handle struct {
	cmd  *exec.Cmd
	pid  int
	done chan struct{}
	err  error // valid after done is closed
	out  *tailBuffer
}

func (h *handle) exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *handle) exitCode() int {
	if h.cmd.ProcessState == nil {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}

// Controller owns at most one capture process. All transitions are serialized.
type Controller struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	state State
	h     *handle
}

// New creates a Controller in the stopped state.
func New(cfg Config, logger *zap.Logger) *Controller {
	if cfg.Probe <= 0 {
		cfg.Probe = DefaultProbe
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.OutputLimit <= 0 {
		cfg.OutputLimit = defaultOutputLimit
	}
	return &Controller{cfg: cfg, logger: logger, state: StateStopped}
}

// Start launches the process and confirms it survives the probe interval.
func (c *Controller) Start(_ context.Context) (int, error) {
	c.mu.Lock()
	c.reapLocked()
	switch c.state {
	case StateRunning:
		pid := c.h.pid
		c.mu.Unlock()
		c.logger.Warn("Capture start requested while running", zap.Int("pid", pid))
		return 0, domain.ErrCaptureAlreadyRunning
	case StateStarting, StateStopping:
		c.mu.Unlock()
		return 0, domain.ErrCaptureBusy
	}

	if err := c.checkArtifact(); err != nil {
		c.mu.Unlock()
		c.logger.Error("Capture program not found", zap.Error(err))
		return 0, err
	}

	h, err := c.launch()
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("Failed to start capture process", zap.Error(err))
		return 0, err
	}
	c.h = h
	c.state = StateStarting
	c.mu.Unlock()

	c.logger.Info("Capture process started",
		zap.Int("pid", h.pid),
		zap.String("command", c.cfg.Command),
		zap.Strings("args", c.cfg.Args),
	)

	timer := time.NewTimer(c.cfg.Probe)
	defer timer.Stop()
	select {
	case <-h.done:
	case <-timer.C:
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if h.exited() {
		c.h = nil
		c.setStateLocked(StateStopped)
		output := h.out.String()
		c.logger.Error("Capture process exited right after start",
			zap.Int("pid", h.pid),
			zap.Int("exit_code", h.exitCode()),
			zap.String("output", output),
		)
		return 0, &domain.CaptureError{
			Err:      domain.ErrCaptureExitedEarly,
			PID:      h.pid,
			ExitCode: h.exitCode(),
			Output:   preview(output),
		}
	}

	c.setStateLocked(StateRunning)
	return h.pid, nil
}

// Stop interrupts the process, waits up to StopTimeout, then kills it.
// The wait is not cut short by ctx: a caller that goes away still gets the
// graceful window. The handle is released on every path. Returns the pid
// that was stopped.
func (c *Controller) Stop(ctx context.Context) (int, error) {
	c.mu.Lock()
	c.reapLocked()
	switch c.state {
	case StateStopped:
		c.mu.Unlock()
		return 0, domain.ErrCaptureNotRunning
	case StateStarting, StateStopping:
		c.mu.Unlock()
		return 0, domain.ErrCaptureBusy
	}
	h := c.h
	c.setStateLocked(StateStopping)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.h = nil
		c.setStateLocked(StateStopped)
		c.mu.Unlock()
	}()

	log := c.logger.With(zap.Int("pid", h.pid))
	log.Info("Stopping capture process with interrupt")

	if err := h.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Warn("Interrupt failed, killing", zap.Error(err))
		c.kill(h, log)
		return h.pid, nil
	}

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.StopTimeout)
	defer cancel()
	select {
	case <-h.done:
		log.Info("Capture process exited gracefully", zap.Int("exit_code", h.exitCode()))
	case <-waitCtx.Done():
		log.Warn("Capture process ignored interrupt, killing")
		c.kill(h, log)
	}
	return h.pid, nil
}

// Status reports whether the process is alive and its pid.
// A process that exited on its own is reaped and reported as not running.
func (c *Controller) Status() (running bool, pid int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reapLocked()
	if c.state != StateRunning || c.h == nil {
		return false, 0
	}
	return true, c.h.pid
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reapLocked()
	return c.state
}

// Shutdown stops a running process; failures are logged, never returned.
func (c *Controller) Shutdown(ctx context.Context) {
	if running, _ := c.Status(); !running {
		return
	}
	c.logger.Info("Stopping capture process on shutdown")
	if _, err := c.Stop(ctx); err != nil {
		c.logger.Warn("Failed to stop capture process on shutdown", zap.Error(err))
	}
}

func (c *Controller) checkArtifact() error {
	if c.cfg.Artifact != "" {
		path := c.artifactPath()
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("%w: %s", domain.ErrCaptureArtifactMissing, path)
		}
		return nil
	}
	if _, err := exec.LookPath(c.cfg.Command); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrCaptureArtifactMissing, c.cfg.Command)
	}
	return nil
}

// artifactPath resolves a relative artifact against Workdir, where the child runs.
func (c *Controller) artifactPath() string {
	if c.cfg.Workdir == "" || filepath.IsAbs(c.cfg.Artifact) {
		return c.cfg.Artifact
	}
	return filepath.Join(c.cfg.Workdir, c.cfg.Artifact)
}

// launch spawns the child detached from any request context. Caller holds mu.
func (c *Controller) launch() (*handle, error) {
	out := newTailBuffer(c.cfg.OutputLimit)
	cmd := exec.Command(c.cfg.Command, c.cfg.Args...) //nolint:gosec // command comes from server config
	cmd.Dir = c.cfg.Workdir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = pipeWaitDelay

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCaptureStartFailed, err)
	}

	h := &handle{cmd: cmd, pid: cmd.Process.Pid, done: make(chan struct{}), out: out}
	go func() {
		h.err = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

func (c *Controller) kill(h *handle, log *zap.Logger) {
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		log.Error("Kill failed", zap.Error(err))
	}
	<-h.done
	log.Info("Capture process killed")
}

// reapLocked drops a running handle whose process already exited. Caller holds mu.
func (c *Controller) reapLocked() {
	if c.state != StateRunning || c.h == nil || !c.h.exited() {
		return
	}
	c.logger.Warn("Capture process exited on its own",
		zap.Int("pid", c.h.pid),
		zap.Int("exit_code", c.h.exitCode()),
		zap.String("output", preview(c.h.out.String())),
	)
	c.h = nil
	c.setStateLocked(StateStopped)
}

func (c *Controller) setStateLocked(s State) {
	c.state = s
	if s == StateRunning {
		metrics.CaptureRunning.Set(1)
	} else if s == StateStopped {
		metrics.CaptureRunning.Set(0)
	}
}

// preview keeps the first outputPreview runes. The tail buffer may have cut
// a rune at its start, so invalid bytes are dropped first.
func preview(s string) string {
	s = strings.TrimSpace(strings.ToValidUTF8(s, ""))
	if utf8.RuneCountInString(s) <= outputPreview {
		return s
	}
	return string([]rune(s)[:outputPreview])
}
