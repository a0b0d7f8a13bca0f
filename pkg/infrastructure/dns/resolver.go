package dns

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sort"
	"time"

	"github.com/WangYihang/netcheck/pkg/domain/entity"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
)

// DefaultServers are queried after the system resolvers
var DefaultServers = []string{
	"8.8.8.8:53", // Google
	"1.1.1.1:53", // Cloudflare
}

// exchanger is the subset of *dns.Client used by the resolver
type exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// Resolver implements service.DNSResolver
type Resolver struct {
	servers  []string
	timeout  time.Duration
	client   exchanger
	fallback func(ctx context.Context, network, host string) ([]net.IP, error)
	logger   *slog.Logger
}

// Config holds DNS resolver configuration
type Config struct {
	// Servers are host:port pairs; empty means resolv.conf followed by DefaultServers
	Servers []string
	// Timeout bounds each of the A and AAAA lookups; it is shared evenly between
	// the servers and the stdlib fallback
	Timeout time.Duration
	// ResolvConf is the path of the system resolver configuration
	ResolvConf string
	// DisableFallback turns off the stdlib resolver used when every server fails
	DisableFallback bool
	Logger          *slog.Logger
}

// NewResolver creates a new DNS resolver
func NewResolver(config Config) *Resolver {
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}
	if config.ResolvConf == "" {
		config.ResolvConf = "/etc/resolv.conf"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	servers := config.Servers
	if len(servers) == 0 {
		servers = append(systemServers(config.ResolvConf), DefaultServers...)
	}

	r := &Resolver{
		servers: servers,
		timeout: config.Timeout,
		logger:  config.Logger,
	}
	if !config.DisableFallback {
		r.fallback = net.DefaultResolver.LookupIP
	}
	r.client = &dns.Client{
		Timeout: r.share(config.Timeout),
	}
	return r
}

// systemServers reads nameservers from a resolv.conf style file
func systemServers(path string) []string {
	config, err := dns.ClientConfigFromFile(path)
	if err != nil || len(config.Servers) == 0 {
		return nil
	}

	port := config.Port
	if port == "" {
		port = "53"
	}
	servers := make([]string, 0, len(config.Servers))
	for _, s := range config.Servers {
		servers = append(servers, net.JoinHostPort(s, port))
	}
	return servers
}

// Servers returns the servers queried in order
func (r *Resolver) Servers() []string {
	return r.servers
}

// share splits a lookup budget evenly between the servers and the fallback
func (r *Resolver) share(budget time.Duration) time.Duration {
	attempts := len(r.servers)
	if r.fallback != nil {
		attempts++
	}
	if attempts <= 1 {
		return budget
	}
	return budget / time.Duration(attempts)
}

// Resolve implements service.DNSResolver
func (r *Resolver) Resolve(ctx context.Context, host string) ([]entity.ResolvedAddress, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []entity.ResolvedAddress{toResolved(addr)}, nil
	}

	var v4, v6 []netip.Addr
	var g errgroup.Group
	g.Go(func() error {
		v4 = r.lookup(ctx, host, dns.TypeA)
		return nil
	})
	g.Go(func() error {
		v6 = r.lookup(ctx, host, dns.TypeAAAA)
		return nil
	})
	g.Wait()

	addrs := dedupe(append(v4, v6...))
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: %s", entity.ErrDNSResolutionFailed, host)
	}

	resolved := make([]entity.ResolvedAddress, 0, len(addrs))
	for _, addr := range addrs {
		resolved = append(resolved, toResolved(addr))
	}
	return resolved, nil
}

// lookup queries one record type, trying each server in turn and falling back
// to the stdlib resolver when none of them answers
func (r *Resolver) lookup(ctx context.Context, host string, qtype uint16) []netip.Addr {
	budget := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < budget {
			budget = remaining
		}
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	perServer := r.share(budget)

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		exchangeCtx, exchangeCancel := context.WithTimeout(ctx, perServer)
		resp, rtt, err := r.client.ExchangeContext(exchangeCtx, msg, server)
		exchangeCancel()
		if err != nil {
			lastErr = err
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			addrs := extract(resp, qtype)
			r.logger.Debug("dns lookup", "host", host, "type", dns.TypeToString[qtype], "server", server, "rtt", rtt, "answers", len(addrs))
			return addrs
		case dns.RcodeNameError:
			r.logger.Debug("dns lookup", "host", host, "type", dns.TypeToString[qtype], "server", server, "rcode", "NXDOMAIN")
			return nil
		default:
			lastErr = fmt.Errorf("server %s answered %s", server, dns.RcodeToString[resp.Rcode])
		}
	}

	r.logger.Debug("dns servers failed", "host", host, "type", dns.TypeToString[qtype], "error", lastErr)
	if r.fallback == nil || ctx.Err() != nil {
		return nil
	}

	network := "ip4"
	if qtype == dns.TypeAAAA {
		network = "ip6"
	}
	ips, err := r.fallback(ctx, network, host)
	if err != nil {
		return nil
	}

	addrs := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		if addr, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}
	return addrs
}

func extract(resp *dns.Msg, qtype uint16) []netip.Addr {
	var addrs []netip.Addr
	for _, answer := range resp.Answer {
		switch rr := answer.(type) {
		case *dns.A:
			if qtype != dns.TypeA {
				continue
			}
			if addr, ok := netip.AddrFromSlice(rr.A.To4()); ok {
				addrs = append(addrs, addr)
			}
		case *dns.AAAA:
			if qtype != dns.TypeAAAA {
				continue
			}
			if addr, ok := netip.AddrFromSlice(rr.AAAA.To16()); ok {
				addrs = append(addrs, addr)
			}
		}
	}
	return addrs
}

// dedupe removes duplicates and orders IPv4 before IPv6
func dedupe(addrs []netip.Addr) []netip.Addr {
	seen := make(map[netip.Addr]bool, len(addrs))
	unique := make([]netip.Addr, 0, len(addrs))
	for _, addr := range addrs {
		if !seen[addr] {
			seen[addr] = true
			unique = append(unique, addr)
		}
	}

	sort.Slice(unique, func(i, j int) bool {
		if unique[i].Is4() != unique[j].Is4() {
			return unique[i].Is4()
		}
		return unique[i].Less(unique[j])
	})
	return unique
}

func toResolved(addr netip.Addr) entity.ResolvedAddress {
	addr = addr.Unmap()
	family := entity.IPv6
	if addr.Is4() {
		family = entity.IPv4
	}
	return entity.ResolvedAddress{IP: addr.String(), Family: family}
}
