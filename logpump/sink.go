package logpump

import (
	"io"
	"os"
	"path/filepath"
	"sync"
)

/*
A Sink is where a Pump writes.  Inherited sinks (the host's own stdout and
stderr) are flushed but never closed; owned sinks are closed when the pump
terminates.
*/
type Sink struct {
	io.Writer
	closer io.Closer
}

// Inherited wraps a stream the pump must not close.
func Inherited(w io.Writer) Sink {
	return Sink{Writer: w}
}

// Owned wraps a stream the pump closes once its source is exhausted.
func Owned(wc io.WriteCloser) Sink {
	return Sink{Writer: wc, closer: wc}
}

// File returns an owned sink backed by path. The file is created on the first
// write that reaches it, or on close if nothing was ever written.
func File(path string) Sink {
	f := &lazyFile{path: path}
	return Sink{Writer: f, closer: f}
}

// SafeToClose reports whether the pump owns the sink.
func (s Sink) SafeToClose() bool {
	return s.closer != nil
}

func (s Sink) close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

type lazyFile struct {
	path string

	mu   sync.Mutex
	file *os.File
}

func (f *lazyFile) open() error {
	if f.file != nil {
		return nil
	}
	err := os.MkdirAll(filepath.Dir(f.path), 0755)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	f.file = file
	return nil
}

func (f *lazyFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.open(); err != nil {
		return 0, err
	}
	return f.file.Write(p)
}

func (f *lazyFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.open(); err != nil {
		return err
	}
	return f.file.Close()
}
