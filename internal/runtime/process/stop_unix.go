//go:build !windows

package process

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Terminate asks the child's process group to exit.
func (c *Child) Terminate() error {
	return c.signalGroup(syscall.SIGTERM)
}

// Kill forcefully terminates the child's process group.
func (c *Child) Kill() error {
	return c.signalGroup(syscall.SIGKILL)
}

func (c *Child) signalGroup(sig syscall.Signal) error {
	if c.cmd.Process == nil || c.Exited() {
		return nil
	}
	pid := c.cmd.Process.Pid
	if err := syscall.Kill(-pid, sig); err != nil {
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		// Fall back to the direct child when the group is not reachable.
		if perr := c.cmd.Process.Signal(sig); perr != nil && !errors.Is(perr, os.ErrProcessDone) {
			return fmt.Errorf("signal %s to pid %d: %w", sig, pid, err)
		}
	}
	return nil
}
