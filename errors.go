package minicluster

import (
	"errors"
	"fmt"
)

// ErrStopped is returned by Start when Stop ran before startup finished.
var ErrStopped = errors.New("cluster was stopped during startup")

// StageError is every fatal Start failure: which stage, which process, why.
type StageError struct {
	Stage   string
	Process string
	Err     error
}

func (e *StageError) Error() string {
	if e.Process == "" {
		return fmt.Sprintf("stage %s: %s", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s: process %s: %s", e.Stage, e.Process, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
