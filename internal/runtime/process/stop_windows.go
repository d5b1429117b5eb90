//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
)

// Terminate attempts to interrupt the child. Windows cannot deliver an
// interrupt to an arbitrary process, so a failure here is not reported; the
// caller escalates to Kill after its wait window.
func (c *Child) Terminate() error {
	if c.cmd.Process == nil || c.Exited() {
		return nil
	}
	_ = c.cmd.Process.Signal(os.Interrupt)
	return nil
}

// Kill terminates the direct child.
func (c *Child) Kill() error {
	if c.cmd.Process == nil || c.Exited() {
		return nil
	}
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", c.cmd.Process.Pid, err)
	}
	return nil
}
