package fake_spawner

import (
	"sync"

	"github.com/tedsuo/minicluster/spawn"
)

/*
FakeSpawner records every Spawn and hands out FakeProcesses.  Processes named
in ExitCodes exit with that code as soon as they are spawned; every other
process runs until it is stopped or told to Exit.
*/
type FakeSpawner struct {
	LogDirPath  string
	ExitCodes   map[string]int
	SpawnErrors map[string]error

	// SpawnStub, when set, replaces the default behaviour.
	SpawnStub func(spec spawn.ProcessSpec) (spawn.Process, error)

	mu        sync.Mutex
	spawned   []spawn.ProcessSpec
	processes map[string]*FakeProcess
	nextPid   int
}

func New() *FakeSpawner {
	return &FakeSpawner{
		LogDirPath:  "/tmp/fake-logs",
		ExitCodes:   map[string]int{},
		SpawnErrors: map[string]error{},
		processes:   map[string]*FakeProcess{},
		nextPid:     1000,
	}
}

func (f *FakeSpawner) Spawn(spec spawn.ProcessSpec) (spawn.Process, error) {
	f.mu.Lock()
	f.spawned = append(f.spawned, spec)
	stub := f.SpawnStub
	err := f.SpawnErrors[spec.Name]
	code, exits := f.ExitCodes[spec.Name]
	f.nextPid++
	pid := f.nextPid
	f.mu.Unlock()

	if stub != nil {
		return stub(spec)
	}
	if err != nil {
		return nil, err
	}

	process := NewFakeProcess(spec.Name, pid)
	if exits {
		process.Exit(code)
	}

	f.mu.Lock()
	f.processes[spec.Name] = process
	f.mu.Unlock()

	return process, nil
}

func (f *FakeSpawner) LogDir() string {
	return f.LogDirPath
}

func (f *FakeSpawner) SpawnCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spawned)
}

func (f *FakeSpawner) SpawnArgsForCall(i int) spawn.ProcessSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spawned[i]
}

// Spawned returns the names of every spawned process in spawn order.
func (f *FakeSpawner) Spawned() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.spawned))
	for _, spec := range f.spawned {
		names = append(names, spec.Name)
	}
	return names
}

// Process returns the process spawned under name, or nil.
func (f *FakeSpawner) Process(name string) *FakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processes[name]
}
