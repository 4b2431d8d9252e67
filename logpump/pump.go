/*
Package logpump drains a child process's output stream into a sink.

A Pump is an ifrit.Runner.  It becomes ready immediately, copies lines from
its source until end-of-stream, and exits.  While it runs, a ticker flushes
the buffered sink once per FlushInterval so slow writers still show up in the
logs.  Signaling a pump closes its source, which forces the copy loop to
finish with whatever has already been read.
*/
package logpump

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tedsuo/ifrit"

	"github.com/tedsuo/minicluster/logging"
)

const FlushInterval = time.Second

type Pump struct {
	Name     string
	Interval time.Duration

	source io.ReadCloser
	sink   Sink
	logger *slog.Logger

	mu     sync.Mutex
	out    *bufio.Writer
	closed bool

	process ifrit.Process
}

func New(name string, source io.ReadCloser, sink Sink, logger *slog.Logger) *Pump {
	return &Pump{
		Name:     name,
		Interval: FlushInterval,
		source:   source,
		sink:     sink,
		logger:   logging.OrDiscard(logger),
		out:      bufio.NewWriter(sink),
	}
}

// Start runs the pump in the background and returns it.
func (p *Pump) Start() *Pump {
	p.process = ifrit.Background(p)
	return p
}

// Wait returns a channel that emits once the pump has terminated. It may only
// be used after Start.
func (p *Pump) Wait() <-chan error {
	return p.process.Wait()
}

// Close forces the pump to stop reading. Buffered lines are still flushed.
func (p *Pump) Close() {
	p.process.Signal(os.Interrupt)
}

func (p *Pump) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	finished := make(chan struct{})
	defer close(finished)

	go p.flushEvery(finished)
	go func() {
		select {
		case <-signals:
			p.source.Close()
		case <-finished:
		}
	}()

	close(ready)

	err := p.copyLines()
	p.release()

	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

func (p *Pump) copyLines() error {
	reader := bufio.NewReader(p.source)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if appendErr := p.append(trimEOL(line)); appendErr != nil {
				p.logger.Error("writing process output", "process", p.Name, "error", appendErr)
			}
		}
		if err != nil {
			return err
		}
	}
}

// trimEOL removes one line terminator, "\n" or "\r\n".
func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

func (p *Pump) append(line string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	if _, err := p.out.WriteString(line); err != nil {
		return p.resetAfter(err)
	}
	if err := p.out.WriteByte('\n'); err != nil {
		return p.resetAfter(err)
	}
	return nil
}

// resetAfter drops whatever the failed write left buffered so later lines reach
// the sink once it accepts writes again. Callers hold p.mu.
func (p *Pump) resetAfter(err error) error {
	p.out.Reset(p.sink)
	return err
}

/*
Flush forces buffered output into the sink.  It is safe to call while the
pump is running and is a no-op after the pump has terminated.
*/
func (p *Pump) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	if err := p.out.Flush(); err != nil {
		return p.resetAfter(err)
	}
	return nil
}

func (p *Pump) flushEvery(finished <-chan struct{}) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.Flush(); err != nil {
				p.logger.Error("periodic flush failed", "process", p.Name, "error", err)
			}
		case <-finished:
			return
		}
	}
}

// release flushes and closes the sink, then closes the source. Errors here
// are logged at debug and otherwise ignored.
func (p *Pump) release() {
	p.mu.Lock()
	if err := p.out.Flush(); err != nil {
		p.logger.Debug("final flush failed", "process", p.Name, "error", err)
	}
	if err := p.sink.close(); err != nil {
		p.logger.Debug("closing sink failed", "process", p.Name, "error", err)
	}
	p.closed = true
	p.out = nil
	p.mu.Unlock()

	if err := p.source.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		p.logger.Debug("closing source failed", "process", p.Name, "error", err)
	}
}
