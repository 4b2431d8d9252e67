/*
Package inspector dumps the goroutine stacks of a running minicluster host to
a file on request, for diagnosing a startup that hangs without killing it.
*/
package inspector

import (
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/tedsuo/minicluster/logging"
)

const SIGNAL_BUFFER_SIZE = 1024

const maxStackBytes = 100 * 1024 * 1024

type Inspector struct {
	StackPath string
	Signals   []os.Signal
	Logger    *slog.Logger
}

// New returns an Inspector that writes to stackPath on SIGUSR2 unless other
// signals are given.
func New(stackPath string, logger *slog.Logger, signals ...os.Signal) Inspector {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGUSR2}
	}
	return Inspector{
		StackPath: stackPath,
		Signals:   signals,
		Logger:    logger,
	}
}

func (i Inspector) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	osSignals := make(chan os.Signal, SIGNAL_BUFFER_SIZE)
	signal.Notify(osSignals, i.Signals...)
	defer signal.Stop(osSignals)

	close(ready)

	for {
		select {
		case <-signals:
			return nil

		case <-osSignals:
			i.writeStackTrace()
		}
	}
}

func (i Inspector) writeStackTrace() {
	logger := logging.OrDiscard(i.Logger)

	if err := os.MkdirAll(filepath.Dir(i.StackPath), 0755); err != nil {
		logger.Error("inspector failed to create stack directory", "path", i.StackPath, "error", err)
		return
	}

	f, err := os.Create(i.StackPath)
	if err != nil {
		logger.Error("inspector failed to create stack file", "path", i.StackPath, "error", err)
		return
	}
	defer f.Close()

	by := make([]byte, maxStackBytes)
	n := runtime.Stack(by, true)

	if _, err := f.Write(by[:n]); err != nil {
		logger.Error("inspector failed to write stack file", "path", i.StackPath, "error", err)
		return
	}

	logger.Info("inspector wrote goroutine stacks", "path", i.StackPath)
}
