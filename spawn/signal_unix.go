//go:build unix

package spawn

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

func newProcessGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to every process in pid's group. A group that has
// already gone away is not an error.
func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
