package spawn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tedsuo/minicluster/logpump"
)

// DrainTimeout bounds how long a handle waits for its pumps once the process
// has exited. Pumps can outlive their process when a grandchild inherited the
// pipes.
const DrainTimeout = time.Second

/*
A Handle is one spawned process plus the two pumps draining it.  It is safe
to call any method on a Handle after the process has exited.
*/
type Handle struct {
	name        string
	cmd         *exec.Cmd
	stdout      *logpump.Pump
	stderr      *logpump.Pump
	stopTimeout time.Duration
	logger      *slog.Logger

	exited   chan struct{}
	exitCode int
	waitErr  error

	drainOnce sync.Once
	heldOpen  bool

	stopOnce sync.Once
	stopCode int
	stopErr  error
}

func newHandle(name string, cmd *exec.Cmd, stdout, stderr *logpump.Pump, stopTimeout time.Duration, logger *slog.Logger) *Handle {
	h := &Handle{
		name:        name,
		cmd:         cmd,
		stdout:      stdout,
		stderr:      stderr,
		stopTimeout: stopTimeout,
		logger:      logger,
		exited:      make(chan struct{}),
	}
	go h.reap()
	return h
}

func (h *Handle) reap() {
	err := h.cmd.Wait()

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		h.waitErr = err
	}
	h.exitCode = h.cmd.ProcessState.ExitCode()

	h.logger.Debug("process exited", "process", h.name, "exit_code", h.exitCode)
	close(h.exited)
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// Exited closes once the OS process has been reaped.
func (h *Handle) Exited() <-chan struct{} {
	return h.exited
}

/*
Wait blocks until the process exits on its own and its output has been
drained, then returns the exit code.  A code of -1 means the process was
killed by a signal.
*/
func (h *Handle) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.exited:
	case <-ctx.Done():
		return -1, fmt.Errorf("waiting for %s: %w", h.name, ctx.Err())
	}

	h.drain()
	return h.exitCode, h.waitErr
}

/*
Stop flushes both pumps, terminates the process group and waits for the
process to exit.  A process that already exited is not an error; its stale
exit code is returned.  Only the first call does any work, later calls return
the same result.
*/
func (h *Handle) Stop(ctx context.Context) (int, error) {
	h.stopOnce.Do(func() {
		h.stopCode, h.stopErr = h.stop(ctx)
	})
	return h.stopCode, h.stopErr
}

func (h *Handle) stop(ctx context.Context) (int, error) {
	h.logger.Debug("flushing process output", "process", h.name)
	if err := h.stdout.Flush(); err != nil {
		h.logger.Warn("flushing stdout failed", "process", h.name, "error", err)
	}
	if err := h.stderr.Flush(); err != nil {
		h.logger.Warn("flushing stderr failed", "process", h.name, "error", err)
	}

	select {
	case <-h.exited:
		h.logger.Info("process had already exited", "process", h.name, "exit_code", h.exitCode)
		// Output still held open means something in the group survived, so
		// the group id cannot have been reused yet.
		if h.drain() {
			h.logger.Info("terminating processes left behind in the group", "process", h.name)
			if err := signalGroup(h.Pid(), unix.SIGTERM); err != nil {
				h.logger.Debug("signalling leftover group failed", "process", h.name, "error", err)
			}
		}
		return h.exitCode, nil
	default:
	}

	h.logger.Info("stopping process", "process", h.name, "pid", h.Pid())
	if err := signalGroup(h.Pid(), unix.SIGTERM); err != nil {
		h.logger.Warn("sending SIGTERM failed", "process", h.name, "error", err)
	}

	grace := time.NewTimer(h.stopTimeout)
	defer grace.Stop()

	select {
	case <-h.exited:
	case <-grace.C:
		h.logger.Warn("grace period expired, sending SIGKILL", "process", h.name, "timeout", h.stopTimeout)
		h.kill()
	case <-ctx.Done():
		h.logger.Warn("stop cancelled, sending SIGKILL", "process", h.name)
		h.kill()
	}

	select {
	case <-h.exited:
	case <-ctx.Done():
		return -1, fmt.Errorf("waiting for %s to exit: %w", h.name, ctx.Err())
	}

	h.drain()
	h.logger.Info("process stopped", "process", h.name, "exit_code", h.exitCode)
	return h.exitCode, nil
}

func (h *Handle) kill() {
	if err := signalGroup(h.Pid(), unix.SIGKILL); err != nil {
		h.logger.Error("sending SIGKILL failed", "process", h.name, "error", err)
	}
}

// drain waits for both pumps and reports whether either was still held open
// by another process when DrainTimeout expired.
func (h *Handle) drain() bool {
	h.drainOnce.Do(func() {
		timeout := time.NewTimer(DrainTimeout)
		defer timeout.Stop()

		expired := false
		for _, pump := range []*logpump.Pump{h.stdout, h.stderr} {
			if !expired {
				select {
				case <-pump.Wait():
					continue
				case <-timeout.C:
					expired = true
				}
			}
			h.logger.Debug("output still open after exit, closing", "process", h.name, "stream", pump.Name)
			pump.Close()
			<-pump.Wait()
		}
		h.heldOpen = expired
	})
	return h.heldOpen
}
