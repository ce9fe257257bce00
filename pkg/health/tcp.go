package health

import (
	"context"
	"fmt"
	"net"
)

// TCPProbe checks that a TCP endpoint accepts connections
type TCPProbe struct {
	// Address is the TCP address to connect to (e.g., "nas.local:445")
	Address string
}

// NewTCPProbe creates a TCP probe for the given address
func NewTCPProbe(address string) *TCPProbe {
	return &TCPProbe{Address: address}
}

// Check attempts a TCP connection. The aggregator bounds ctx with the
// probe timeout.
func (p *TCPProbe) Check(ctx context.Context) Result {
	dialer := &net.Dialer{}

	conn, err := dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return Result{Status: StatusDown, Message: fmt.Sprintf("connection failed: %v", err)}
	}
	defer conn.Close()

	return Result{Status: StatusUp, Message: fmt.Sprintf("TCP connection to %s successful", p.Address)}
}
