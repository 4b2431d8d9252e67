/*
Package readiness polls a freshly started dependency until it reports
healthy.

A Probe retries a Checker with a short fixed backoff until it passes or the
timeout measured from the first attempt runs out.  Startup latency is bounded
and attempts are cheap compared with launching a process, so there is no
exponential backoff.
*/
package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tedsuo/minicluster/logging"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultBackoff        = 250 * time.Millisecond
	DefaultAttemptTimeout = time.Second
)

var ErrTimeout = errors.New("readiness timeout")

type Probe struct {
	// Name labels the target in logs and errors.
	Name    string
	Addr    string
	Checker Checker

	Timeout        time.Duration
	Backoff        time.Duration
	AttemptTimeout time.Duration

	// LogDir is quoted in the timeout error so the reader knows where the
	// target's output went.
	LogDir string

	Logger *slog.Logger
}

/*
Wait blocks until the target passes a check, the timeout elapses or ctx is
done.  A timeout produces a *TimeoutError.
*/
func (p Probe) Wait(ctx context.Context) error {
	timeout := orDefault(p.Timeout, DefaultTimeout)
	backoff := orDefault(p.Backoff, DefaultBackoff)
	attemptTimeout := orDefault(p.AttemptTimeout, DefaultAttemptTimeout)
	logger := logging.OrDiscard(p.Logger)

	logger.Info("waiting for process to report ok", "process", p.Name, "addr", p.Addr)

	start := time.Now()
	attempts := 0
	for {
		attempts++

		attemptCtx, cancel := attemptContext(ctx, timeout-time.Since(start), attemptTimeout)
		err := p.Checker.Check(attemptCtx, p.Addr)
		cancel()

		if err == nil {
			logger.Info("process is ready", "process", p.Name, "attempts", attempts, "elapsed", time.Since(start))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("waiting for %s: %w", p.Name, ctxErr)
		}

		logger.Debug("process not ready", "process", p.Name, "attempt", attempts, "error", err)

		if time.Since(start) >= timeout {
			return &TimeoutError{
				Target:   p.Name,
				Addr:     p.Addr,
				Timeout:  timeout,
				Attempts: attempts,
				LogDir:   p.LogDir,
				LastErr:  err,
			}
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", p.Name, ctx.Err())
		}
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

type TimeoutError struct {
	Target   string
	Addr     string
	Timeout  time.Duration
	Attempts int
	LogDir   string
	LastErr  error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf(
		"%s at %s did not become ready within the %s timeout (%d attempts). Check the logs in %s for errors. Last error: %v",
		e.Target, e.Addr, e.Timeout, e.Attempts, e.LogDir, e.LastErr,
	)
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
