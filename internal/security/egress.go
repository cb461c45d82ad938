// Package security restricts outbound HTTP from the feed clients to public
// addresses. The tariff feed URL is operator supplied, so a misconfigured or
// redirected feed must not be able to reach the instance metadata service or
// anything else on the VPC.
package security

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// dnsTimeout bounds each resolution performed by the guard.
const dnsTimeout = 500 * time.Millisecond

var (
	// ErrBlocked is returned when a connection or redirect targets a private range.
	ErrBlocked = errors.New("egress: destination in blocked range")

	// ErrDNSTimeout is returned when resolution exceeds dnsTimeout.
	ErrDNSTimeout = errors.New("egress: DNS resolution timeout")

	// ErrDNSFailed is returned when the host cannot be resolved.
	ErrDNSFailed = errors.New("egress: DNS resolution failed")

	// ErrTooManyRedirects is returned once the redirect limit is exceeded.
	ErrTooManyRedirects = errors.New("egress: too many redirects")
)

// blockedCIDRs covers loopback, private, link-local (AWS metadata), CGN and
// reserved ranges for both address families.
var blockedCIDRs = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"100.64.0.0/10",
	"198.18.0.0/15",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
}

var blockedNets = mustParseCIDRs(blockedCIDRs)

func mustParseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("egress: bad CIDR %q: %v", cidr, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// IsBlockedIP reports whether ip falls in any blocked range.
func IsBlockedIP(ip net.IP) bool {
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolver abstracts DNS resolution for tests.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard validates every destination before a connection is made.
type Guard struct {
	resolver Resolver
	dialer   *net.Dialer
}

// NewGuard returns a Guard. A nil resolver uses net.DefaultResolver.
func NewGuard(resolver Resolver) *Guard {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Guard{resolver: resolver, dialer: &net.Dialer{Timeout: 5 * time.Second}}
}

// resolve returns the addresses for host, failing if any of them is blocked.
// Checking all of them closes the DNS rebinding gap where one public and one
// private answer are mixed.
func (g *Guard) resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if IsBlockedIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrBlocked, ip)
		}
		return []net.IP{ip}, nil
	}

	dnsCtx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	addrs, err := g.resolver.LookupIPAddr(dnsCtx, host)
	if err != nil {
		if dnsCtx.Err() != nil {
			return nil, fmt.Errorf("%w: host %q", ErrDNSTimeout, host)
		}
		return nil, fmt.Errorf("%w: host %q: %v", ErrDNSFailed, host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: host %q resolved to no addresses", ErrDNSFailed, host)
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if IsBlockedIP(a.IP) {
			return nil, fmt.Errorf("%w: %s (resolved from %s)", ErrBlocked, a.IP, host)
		}
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// DialContext resolves and validates addr, then dials the first address.
func (g *Guard) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("egress: invalid address %q: %w", addr, err)
	}
	ips, err := g.resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	return g.dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

// CheckRedirect returns an http.Client CheckRedirect hook that applies the
// same validation to redirect targets and caps the chain length.
func (g *Guard) CheckRedirect(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: limit is %d", ErrTooManyRedirects, maxRedirects)
		}
		host := req.URL.Hostname()
		if host == "" {
			return fmt.Errorf("%w: redirect URL has no host", ErrBlocked)
		}
		_, err := g.resolve(req.Context(), host)
		return err
	}
}

// NewHTTPClient returns a client whose transport dials through a Guard.
func NewHTTPClient(timeout time.Duration, maxRedirects int) *http.Client {
	return newHTTPClient(NewGuard(nil), timeout, maxRedirects)
}

func newHTTPClient(g *Guard, timeout time.Duration, maxRedirects int) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = g.DialContext
	base.Proxy = nil
	return &http.Client{
		Transport:     base,
		Timeout:       timeout,
		CheckRedirect: g.CheckRedirect(maxRedirects),
	}
}
