package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker probes a dependency by dialing its TCP address and
// immediately closing the connection. The coordinator runs one of
// these against its object-store backend's host (e.g.
// "minio.internal:9000"), since the backend is assumed reachable but
// not assumed to expose an HTTP health endpoint of its own.
type TCPChecker struct {
	// Address is the TCP address to connect to.
	Address string

	// Timeout is the connection timeout (default: 5 seconds).
	Timeout time.Duration
}

// NewTCPChecker creates a checker against address with a 5 second
// connect timeout.
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// Check dials Address and reports whether the connection succeeded.
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}

	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("connection to storage backend failed: %v", err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	defer conn.Close()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("storage backend reachable at %s", t.Address),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns CheckTypeTCP.
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout overrides the connect timeout and returns the checker for chaining.
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
