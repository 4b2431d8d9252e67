package minicluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tedsuo/minicluster/readiness"
	"github.com/tedsuo/minicluster/spawn"
)

type StageKind int

const (
	// OneShot: each process must exit with code 0 before the next starts.
	OneShot StageKind = iota
	// Daemon: each process is started, optionally checked, and left running.
	Daemon
)

func (k StageKind) String() string {
	if k == OneShot {
		return "one-shot"
	}
	return "daemon"
}

// ReadyFunc checks a just-started daemon. It is bounded by the cluster's
// daemon start timeout.
type ReadyFunc func(ctx context.Context, spec spawn.ProcessSpec) error

type Stage struct {
	Name      string
	Kind      StageKind
	Processes []spawn.ProcessSpec
	Ready     ReadyFunc
}

/*
Dependency is the process every stage relies on.  External dependencies are
not started, only checked.  A nil Checker skips the readiness check.
*/
type Dependency struct {
	Process  spawn.ProcessSpec
	External bool

	Addr    string
	Checker readiness.Checker
	Timeout time.Duration
}

// Plan is the static shape of a cluster. It must not change once Start has
// been called.
type Plan struct {
	Dependency *Dependency
	Stages     []Stage
}

func (p Plan) Validate() error {
	seen := map[string]bool{}
	check := func(spec spawn.ProcessSpec) error {
		if spec.Name == "" {
			return errors.New("every process needs a name")
		}
		if seen[spec.Name] {
			return fmt.Errorf("process name %s is used twice", spec.Name)
		}
		seen[spec.Name] = true
		return nil
	}

	if p.Dependency != nil && !p.Dependency.External {
		if err := check(p.Dependency.Process); err != nil {
			return err
		}
	}

	for _, stage := range p.Stages {
		if len(stage.Processes) == 0 {
			return fmt.Errorf("stage %s has no processes", stage.Name)
		}
		for _, spec := range stage.Processes {
			if err := check(spec); err != nil {
				return err
			}
		}
	}
	return nil
}
