package probe

import (
	"fmt"
	"net"
	"strconv"
)

// PortChecker reports whether a loopback TCP port is already taken.
type PortChecker interface {
	IsPortBusy(port int) bool
}

// PortCheckerFunc adapts a function to the PortChecker interface.
type PortCheckerFunc func(port int) bool

// IsPortBusy implements PortChecker.
func (f PortCheckerFunc) IsPortBusy(port int) bool {
	return f(port)
}

// LoopbackChecker binds 127.0.0.1:port and releases it immediately. It holds
// no state and is safe for concurrent use.
type LoopbackChecker struct{}

// IsPortBusy reports true when the bind fails for any reason. Only a
// successful bind proves the port is free.
func (LoopbackChecker) IsPortBusy(port int) bool {
	return IsPortBusy(port)
}

// IsPortBusy binds a TCP listener on 127.0.0.1:port. Address-in-use and every
// other bind failure are reported as busy.
func IsPortBusy(port int) bool {
	if port < 1 || port > 65535 {
		return true
	}
	ln, err := net.Listen("tcp", loopbackAddr(port))
	if err != nil {
		return true
	}
	_ = ln.Close()
	return false
}

func loopbackAddr(port int) string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// URL returns the browser address for a local port.
func URL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}
