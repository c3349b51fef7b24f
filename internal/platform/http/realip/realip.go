// Package realip resolves the client address of a request, honoring
// X-Forwarded-For only when the direct peer is a trusted proxy.
package realip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies holds the prefixes allowed to set forwarding headers.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// NewTrustedProxies parses CIDRs or bare addresses. Unparseable entries are
// skipped and returned so the caller can log them.
func NewTrustedProxies(entries []string) (*TrustedProxies, []string) {
	tp := &TrustedProxies{}
	var invalid []string
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if p, err := netip.ParsePrefix(e); err == nil {
			tp.prefixes = append(tp.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			tp.prefixes = append(tp.prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		invalid = append(invalid, e)
	}
	return tp, invalid
}

// IsTrusted reports whether addr falls inside a trusted prefix.
func (tp *TrustedProxies) IsTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range tp.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientAddr returns the client address for r.
//
// From a trusted peer, the first parseable X-Forwarded-For hop wins, then
// X-Real-IP. From anyone else the headers are ignored.
func (tp *TrustedProxies) ClientAddr(r *http.Request) (netip.Addr, bool) {
	direct, ok := parseRemoteAddr(r.RemoteAddr)
	if !ok || !tp.IsTrusted(direct) {
		return direct, ok
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, hop := range strings.Split(xff, ",") {
			if a, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil {
				return a.Unmap(), true
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if a, err := netip.ParseAddr(xri); err == nil {
			return a.Unmap(), true
		}
	}
	return direct, true
}

// ClientIP returns the client address as a string, or "unknown".
func (tp *TrustedProxies) ClientIP(r *http.Request) string {
	a, ok := tp.ClientAddr(r)
	if !ok {
		return "unknown"
	}
	return a.String()
}

func parseRemoteAddr(addr string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}
