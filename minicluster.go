package minicluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tedsuo/minicluster/logging"
	"github.com/tedsuo/minicluster/readiness"
	"github.com/tedsuo/minicluster/spawn"
)

// Spawner launches processes for a MiniCluster. *spawn.Spawner is the real
// one.
type Spawner interface {
	Spawn(spec spawn.ProcessSpec) (spawn.Process, error)
	LogDir() string
}

type Options struct {
	Plan    Plan
	Spawner Spawner

	InstanceName string
	ZooKeepers   string

	// Prepare runs first in Start, before anything is spawned. It typically
	// creates directories and configuration files.
	Prepare func() error

	// Registrar receives the cluster's Stop during Start. Defaults to a
	// SignalRegistrar for SIGINT and SIGTERM.
	Registrar TeardownRegistrar

	// Zero means wait forever.
	OneShotTimeout     time.Duration
	DaemonStartTimeout time.Duration

	// RollbackOnFailure stops everything already started when Start fails.
	// Off by default so a half-started cluster can be inspected.
	RollbackOnFailure bool

	Logger *slog.Logger
}

type MiniCluster struct {
	options Options
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	managed []spawn.Process
}

var _ Cluster = (*MiniCluster)(nil)

func New(options Options) (*MiniCluster, error) {
	if options.Spawner == nil {
		return nil, errors.New("a spawner is required")
	}
	if err := options.Plan.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	if options.Registrar == nil {
		options.Registrar = NewSignalRegistrar()
	}

	return &MiniCluster{
		options: options,
		logger:  logging.OrDiscard(options.Logger),
		state:   NotStarted,
	}, nil
}

func (c *MiniCluster) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Processes returns the names of the managed processes in start order.
func (c *MiniCluster) Processes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.managed))
	for _, p := range c.managed {
		names = append(names, p.Name())
	}
	return names
}

func (c *MiniCluster) ConnectionInfo() ConnectionInfo {
	return ConnectionInfo{
		InstanceName: c.options.InstanceName,
		ZooKeepers:   c.options.ZooKeepers,
		LogDir:       c.options.Spawner.LogDir(),
		Processes:    c.Processes(),
	}
}

/*
Start brings the cluster up stage by stage.  It only does anything the first
time it is called.  A failure aborts the remaining stages and is returned as a
*StageError; unless RollbackOnFailure is set, processes that were already
started keep running until Stop.
*/
func (c *MiniCluster) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != NotStarted {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("start called on a cluster that is not new", "state", state.String())
		return nil
	}
	c.state = Starting
	c.mu.Unlock()

	c.logger.Info("starting cluster", "instance", c.options.InstanceName)

	err := c.start(ctx)
	if err != nil {
		c.logger.Error("cluster failed to start", "error", err)
		c.fail(ctx)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Stopped {
		return ErrStopped
	}
	c.state = Running
	c.logger.Info("cluster is running", "instance", c.options.InstanceName, "processes", len(c.managed))
	return nil
}

func (c *MiniCluster) fail(ctx context.Context) {
	if c.options.RollbackOnFailure {
		c.logger.Info("rolling back partially started cluster")
		c.Stop(context.WithoutCancel(ctx))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Starting {
		c.state = Failed
	}
}

func (c *MiniCluster) start(ctx context.Context) error {
	if c.options.Prepare != nil {
		if err := c.options.Prepare(); err != nil {
			return &StageError{Stage: "prepare", Err: err}
		}
	}

	c.options.Registrar.Register(func() {
		c.logger.Info("teardown callback called, stopping cluster")
		c.Stop(context.Background())
	})

	if dep := c.options.Plan.Dependency; dep != nil {
		if err := c.ensureDependency(ctx, dep); err != nil {
			return err
		}
	}

	for _, stage := range c.options.Plan.Stages {
		var err error
		switch stage.Kind {
		case OneShot:
			err = c.runOneShot(ctx, stage)
		default:
			err = c.startDaemons(ctx, stage)
		}
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *MiniCluster) ensureDependency(ctx context.Context, dep *Dependency) error {
	name := dep.Process.Name
	if dep.External {
		c.logger.Info("using an existing dependency", "addr", dep.Addr)
		name = dep.Addr
	} else {
		if _, err := c.spawn("dependency", dep.Process); err != nil {
			return err
		}
	}

	if dep.Checker == nil {
		return nil
	}

	probe := readiness.Probe{
		Name:    name,
		Addr:    dep.Addr,
		Checker: dep.Checker,
		Timeout: dep.Timeout,
		LogDir:  c.options.Spawner.LogDir(),
		Logger:  c.logger,
	}
	if err := probe.Wait(ctx); err != nil {
		return &StageError{Stage: "dependency", Process: name, Err: err}
	}
	return nil
}

func (c *MiniCluster) runOneShot(ctx context.Context, stage Stage) error {
	for _, spec := range stage.Processes {
		process, err := c.spawn(stage.Name, spec)
		if err != nil {
			return err
		}

		waitCtx, cancel := withOptionalTimeout(ctx, c.options.OneShotTimeout)
		code, err := process.Wait(waitCtx)
		cancel()
		if err != nil {
			return &StageError{Stage: stage.Name, Process: spec.Name, Err: err}
		}
		if code != 0 {
			return &StageError{Stage: stage.Name, Process: spec.Name, Err: &spawn.ExitError{Process: spec.Name, Code: code}}
		}

		c.logger.Info("one-shot process completed", "stage", stage.Name, "process", spec.Name)
	}
	return nil
}

func (c *MiniCluster) startDaemons(ctx context.Context, stage Stage) error {
	for _, spec := range stage.Processes {
		if _, err := c.spawn(stage.Name, spec); err != nil {
			return err
		}

		if stage.Ready == nil {
			continue
		}

		readyCtx, cancel := withOptionalTimeout(ctx, c.options.DaemonStartTimeout)
		err := stage.Ready(readyCtx, spec)
		cancel()
		if err != nil {
			return &StageError{Stage: stage.Name, Process: spec.Name, Err: err}
		}
	}
	return nil
}

// spawn starts spec and adds it to the managed set. A process spawned after
// Stop has begun is stopped straight away.
func (c *MiniCluster) spawn(stage string, spec spawn.ProcessSpec) (spawn.Process, error) {
	process, err := c.options.Spawner.Spawn(spec)
	if err != nil {
		return nil, &StageError{Stage: stage, Process: spec.Name, Err: err}
	}

	c.mu.Lock()
	if c.state == Stopped {
		c.mu.Unlock()
		process.Stop(context.Background())
		return nil, &StageError{Stage: stage, Process: spec.Name, Err: ErrStopped}
	}
	c.managed = append(c.managed, process)
	c.mu.Unlock()

	return process, nil
}

/*
Stop makes one termination attempt for every managed process, newest first.
A process that fails to stop is logged and recorded in the returned trace;
the others are still stopped.  Only the first call after Start does anything.
*/
func (c *MiniCluster) Stop(ctx context.Context) ExitTrace {
	c.mu.Lock()
	if c.state == NotStarted || c.state == Stopped {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("stop called on a cluster that is not running", "state", state.String())
		return nil
	}
	c.state = Stopped
	managed := c.managed
	c.mu.Unlock()

	c.logger.Info("stopping cluster", "instance", c.options.InstanceName)

	trace := make(ExitTrace, 0, len(managed))
	for i := len(managed) - 1; i >= 0; i-- {
		process := managed[i]
		code, err := process.Stop(ctx)
		if err != nil {
			c.logger.Error("failed to stop process", "process", process.Name(), "error", err)
		} else {
			c.logger.Info("process stopped", "process", process.Name(), "exit_code", code)
		}
		trace = append(trace, ExitEvent{Name: process.Name(), ExitCode: code, Err: err})
	}

	c.logger.Info("cluster stopped", "instance", c.options.InstanceName)
	return trace
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
