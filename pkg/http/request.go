package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig lists the proxies whose forwarding headers are believed
type IPConfig struct {
	TrustedProxies []string // CIDR ranges; invalid entries are skipped
}

func (c *IPConfig) trusted(addr netip.Addr) bool {
	if c == nil {
		return false
	}
	for _, cidr := range c.TrustedProxies {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err == nil && prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the address of the client behind r. Forwarding
// headers are only read when the peer is a trusted proxy; X-Forwarded-For is
// walked right to left and the first hop outside the trusted ranges wins.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	peer := remoteHost(r.RemoteAddr)
	peerAddr, err := netip.ParseAddr(peer)
	if err != nil || !config.trusted(peerAddr.Unmap()) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				continue
			}
			if !config.trusted(hop.Unmap()) {
				return hop.String()
			}
		}
	}

	if xri, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xri.String()
	}
	return peer
}

func remoteHost(remoteAddr string) string {
	if remoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// IsPublicIP reports whether ip is a routable address worth geolocating
func IsPublicIP(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsGlobalUnicast() && !addr.IsPrivate()
}
