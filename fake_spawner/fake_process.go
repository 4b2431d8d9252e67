package fake_spawner

import (
	"context"
	"sync"
)

type FakeProcess struct {
	name string
	pid  int

	// StopError is returned by Stop without exiting the process.
	StopError error

	mu        sync.Mutex
	exited    chan struct{}
	exitCode  int
	stopCalls int
}

func NewFakeProcess(name string, pid int) *FakeProcess {
	return &FakeProcess{
		name:   name,
		pid:    pid,
		exited: make(chan struct{}),
	}
}

func (p *FakeProcess) Name() string {
	return p.name
}

func (p *FakeProcess) Pid() int {
	return p.pid
}

// Exit makes the process exit with code. Only the first call counts.
func (p *FakeProcess) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exit(code)
}

func (p *FakeProcess) exit(code int) {
	select {
	case <-p.exited:
	default:
		p.exitCode = code
		close(p.exited)
	}
}

func (p *FakeProcess) Exited() <-chan struct{} {
	return p.exited
}

func (p *FakeProcess) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.exited:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.exitCode, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *FakeProcess) Stop(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopCalls++
	if p.StopError != nil {
		return -1, p.StopError
	}

	p.exit(-1)
	return p.exitCode, nil
}

func (p *FakeProcess) StopCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopCalls
}
