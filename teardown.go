package minicluster

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// A TeardownRegistrar runs registered callbacks when the host is about to
// go away. MiniCluster registers its Stop with one during Start.
type TeardownRegistrar interface {
	Register(callback func())
}

// The RegistrarFunc type is an adapter to allow the use of ordinary functions
// as TeardownRegistrars.
type RegistrarFunc func(callback func())

func (f RegistrarFunc) Register(callback func()) {
	f(callback)
}

// NopRegistrar drops callbacks, for callers that guarantee Stop themselves.
type NopRegistrar struct{}

func (NopRegistrar) Register(func()) {}

/*
SignalRegistrar runs callbacks when the process receives one of Signals
(SIGINT and SIGTERM when empty).  Callbacks run once, in registration order.

Every SignalRegistrar in the process shares one watcher.  When a signal
arrives, all registrars listening for it fire concurrently, and the signal is
only re-raised once every one of them has finished.  With Reraise set on any
of them the signal is delivered again with its default disposition restored,
so the host still dies the way it would have.
*/
type SignalRegistrar struct {
	Signals []os.Signal
	Reraise bool

	mu        sync.Mutex
	callbacks []func()
	watched   bool
	fired     bool
}

func NewSignalRegistrar(signals ...os.Signal) *SignalRegistrar {
	return &SignalRegistrar{Signals: signals, Reraise: true}
}

func (r *SignalRegistrar) Register(callback func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.callbacks = append(r.callbacks, callback)
	if r.watched {
		return
	}
	r.watched = true

	signals := r.Signals
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}
	watcher.add(r, signals)
}

func (r *SignalRegistrar) fire() {
	r.mu.Lock()
	callbacks := r.callbacks
	r.mu.Unlock()

	for _, callback := range callbacks {
		callback()
	}

	r.mu.Lock()
	r.fired = true
	r.mu.Unlock()
}

// Fired reports whether the callbacks have run.
func (r *SignalRegistrar) Fired() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired
}

var watcher = &signalWatcher{
	channels: map[os.Signal]chan os.Signal{},
	watching: map[os.Signal][]*SignalRegistrar{},
}

// reraise delivers sig to the process again with the default handler.
var reraise = func(sig syscall.Signal) {
	signal.Reset(sig)
	syscall.Kill(os.Getpid(), sig)
}

type signalWatcher struct {
	mu       sync.Mutex
	channels map[os.Signal]chan os.Signal
	watching map[os.Signal][]*SignalRegistrar
}

func (w *signalWatcher) add(r *SignalRegistrar, signals []os.Signal) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sig := range signals {
		if containsRegistrar(w.watching[sig], r) {
			continue
		}
		w.watching[sig] = append(w.watching[sig], r)
		if _, ok := w.channels[sig]; ok {
			continue
		}

		notify := make(chan os.Signal, 1)
		w.channels[sig] = notify
		signal.Notify(notify, sig)
		go w.wait(sig, notify)
	}
}

func (w *signalWatcher) wait(sig os.Signal, notify chan os.Signal) {
	received, ok := <-notify
	if !ok {
		return
	}

	registrars := w.take(sig)

	var wg sync.WaitGroup
	for _, r := range registrars {
		wg.Add(1)
		go func(r *SignalRegistrar) {
			defer wg.Done()
			r.fire()
		}(r)
	}
	wg.Wait()

	for _, r := range registrars {
		if !r.Reraise {
			continue
		}
		if s, ok := received.(syscall.Signal); ok {
			reraise(s)
		}
		return
	}
}

// take removes every registrar listening for sig from the watcher, and stops
// watching any signal nobody listens for any more.
func (w *signalWatcher) take(sig os.Signal) []*SignalRegistrar {
	w.mu.Lock()
	defer w.mu.Unlock()

	registrars := w.watching[sig]
	delete(w.watching, sig)
	w.release(sig)

	for other, listening := range w.watching {
		remaining := listening[:0:0]
		for _, r := range listening {
			if !containsRegistrar(registrars, r) {
				remaining = append(remaining, r)
			}
		}
		if len(remaining) > 0 {
			w.watching[other] = remaining
			continue
		}
		delete(w.watching, other)
		w.release(other)
	}

	return registrars
}

func (w *signalWatcher) release(sig os.Signal) {
	notify, ok := w.channels[sig]
	if !ok {
		return
	}
	signal.Stop(notify)
	close(notify)
	delete(w.channels, sig)
}

func containsRegistrar(registrars []*SignalRegistrar, r *SignalRegistrar) bool {
	for _, candidate := range registrars {
		if candidate == r {
			return true
		}
	}
	return false
}
