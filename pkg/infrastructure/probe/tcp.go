package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/WangYihang/netcheck/pkg/common"
	"github.com/WangYihang/netcheck/pkg/domain/entity"
)

// TCPProber implements service.ConnectivityProber
type TCPProber struct {
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTCPProber creates a prober dialing with a plain net.Dialer
func NewTCPProber() *TCPProber {
	dialer := &net.Dialer{}
	return &TCPProber{dial: dialer.DialContext}
}

// Probe implements service.ConnectivityProber
func (p *TCPProber) Probe(ctx context.Context, address entity.ResolvedAddress, port int, timeout time.Duration) entity.ProbeResult {
	result := entity.ProbeResult{Address: address}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	conn, err := p.dial(ctx, network(address.Family), net.JoinHostPort(address.IP, strconv.Itoa(port)))
	result.ElapsedSeconds = entity.RoundSeconds(time.Since(start))

	if err != nil {
		code, message := describe(err, timeout)
		result.ErrorCode = code
		result.ErrorMessage = message
		return result
	}

	conn.Close()
	result.Succeeded = true
	return result
}

func network(family entity.AddressFamily) string {
	switch family {
	case entity.IPv4:
		return "tcp4"
	case entity.IPv6:
		return "tcp6"
	default:
		return "tcp"
	}
}

// describe maps a dial error to an errno and a caller safe message
func describe(err error, timeout time.Duration) (*int, string) {
	var code *int
	var errno syscall.Errno
	if errors.As(err, &errno) {
		n := int(errno)
		code = &n
	}

	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || isTimeout(err):
		if code == nil {
			n := int(syscall.ETIMEDOUT)
			code = &n
		}
		return code, fmt.Sprintf("connection timed out after %s", timeout)
	case errors.Is(err, syscall.ECONNREFUSED):
		return code, "connection refused"
	case errors.Is(err, syscall.EHOSTUNREACH):
		return code, "host unreachable"
	case errors.Is(err, syscall.ENETUNREACH):
		return code, "network unreachable"
	case errors.As(err, &dnsErr):
		return code, fmt.Sprintf("could not resolve %s", dnsErr.Name)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err != nil {
		return code, common.SanitizeMessage(opErr.Err.Error())
	}
	return code, common.SanitizeMessage(err.Error())
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
