package spawn

import "fmt"

// ExitError reports a process that ran to completion unsuccessfully.
type ExitError struct {
	Process string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Process, e.Code)
}
