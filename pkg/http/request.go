package http

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// UnknownClientIP is returned when the peer address cannot be parsed.
const UnknownClientIP = "unknown"

// DefaultTrustedProxies trusts only the loopback interface.
var DefaultTrustedProxies = []string{"127.0.0.1/32", "::1/128"}

// ClientIPResolver extracts the real client IP address used as a rate-limit key.
// X-Forwarded-For is honoured only when the direct peer is a trusted proxy, and
// is then scanned right to left so that entries an attacker prepends are ignored.
//
// The trusted ranges are parsed once and never mutated, so a resolver is safe
// for concurrent use.
type ClientIPResolver struct {
	trusted []netip.Prefix
}

// NewClientIPResolver parses the trusted proxy CIDR ranges.
// Any invalid range is an error so misconfiguration fails at startup.
func NewClientIPResolver(trustedCIDRs []string) (*ClientIPResolver, error) {
	prefixes := make([]netip.Prefix, 0, len(trustedCIDRs))
	for _, raw := range trustedCIDRs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy CIDR %q: %w", raw, err)
		}
		prefixes = append(prefixes, p.Masked())
	}
	return &ClientIPResolver{trusted: prefixes}, nil
}

// FromRequest resolves the client IP of r using RemoteAddr and X-Forwarded-For.
// No other header is consulted.
func (c *ClientIPResolver) FromRequest(r *http.Request) string {
	return c.Resolve(r.RemoteAddr, r.Header.Get("X-Forwarded-For"))
}

// Resolve returns the client IP for a peer address and a raw X-Forwarded-For value.
//
// Flow:
// 1. Sanitize remoteAddr; unparsable peers resolve to "unknown"
// 2. Untrusted peer: remoteAddr is the answer, header ignored
// 3. Trusted peer: walk hops (header + remoteAddr) right to left, return the first untrusted one
// 4. Every hop trusted: fall back to remoteAddr
func (c *ClientIPResolver) Resolve(remoteAddr, forwardedFor string) string {
	remote, ok := parseAddr(remoteAddr)
	if !ok {
		return UnknownClientIP
	}
	if !c.isTrusted(remote) || strings.TrimSpace(forwardedFor) == "" {
		return remote.String()
	}

	hops := make([]netip.Addr, 0, 4)
	for _, part := range strings.Split(forwardedFor, ",") {
		if hop, ok := parseAddr(part); ok {
			hops = append(hops, hop)
		}
	}
	hops = append(hops, remote)

	for i := len(hops) - 1; i >= 0; i-- {
		if !c.isTrusted(hops[i]) {
			return hops[i].String()
		}
	}
	return remote.String()
}

func (c *ClientIPResolver) isTrusted(ip netip.Addr) bool {
	for _, p := range c.trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// parseAddr accepts "ip", "ip:port", "[ipv6]:port" and "ipv6%zone" forms.
// IPv4-mapped IPv6 addresses are unmapped so they match IPv4 ranges.
func parseAddr(raw string) (netip.Addr, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
