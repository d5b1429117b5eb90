package probe

import (
	"context"
	"fmt"
	"net"
	"time"
)

type tcpProber struct {
	address string
	dialer  func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTCPProber returns a prober that succeeds once address accepts a TCP
// connection.
func NewTCPProber(address string) Prober {
	return &tcpProber{
		address: address,
		dialer:  (&net.Dialer{}).DialContext,
	}
}

// Prober performs a single readiness check.
type Prober interface {
	Probe(ctx context.Context) error
}

func (p *tcpProber) Probe(ctx context.Context) error {
	conn, err := p.dialer(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.address, err)
	}
	return conn.Close()
}

const (
	defaultListenInterval = 250 * time.Millisecond
	defaultDialTimeout    = time.Second
)

// WaitListening dials 127.0.0.1:port until it accepts a connection or ctx is
// done. A zero interval uses the default polling interval.
func WaitListening(ctx context.Context, port int, interval time.Duration) error {
	return waitFor(ctx, NewTCPProber(loopbackAddr(port)), interval)
}

func waitFor(ctx context.Context, prober Prober, interval time.Duration) error {
	if interval <= 0 {
		interval = defaultListenInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		attemptCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
		err := prober.Probe(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
