package minicluster

import "fmt"

// An ExitEvent records how one managed process ended during Stop.
type ExitEvent struct {
	Name     string
	ExitCode int
	Err      error
}

/*
ExitTrace lists the exit of every managed process in the order Stop handled
them.  It is a report, not a failure: Stop always attempts every process.
*/
type ExitTrace []ExitEvent

// Err returns the trace as an error when any process failed to stop, nil
// otherwise.
func (trace ExitTrace) Err() error {
	for _, exit := range trace {
		if exit.Err != nil {
			return trace
		}
	}
	return nil
}

func (trace ExitTrace) Error() string {
	msg := "Exit trace for cluster:\n"

	for _, exit := range trace {
		if exit.Err == nil {
			msg += fmt.Sprintf("%s exited with code %d\n", exit.Name, exit.ExitCode)
		} else {
			msg += fmt.Sprintf("%s failed to stop: %s\n", exit.Name, exit.Err.Error())
		}
	}

	return msg
}
