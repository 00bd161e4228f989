// Package clientip resolves the address a request came from when the service
// sits behind proxies and the browser may also report its own public IP.
package clientip

import (
	"net"
	"strings"
)

// Unknown is recorded when no usable address could be found.
const Unknown = "unknown"

// Context carries every source of a client address for one request.
type Context struct {
	// Claimed is the address the client put in the request body, if any.
	Claimed      string
	ForwardedFor string
	RealIP       string
	// RemoteAddr is the socket peer, "ip:port" or bare ip.
	RemoteAddr string
}

// Resolve picks the client address in preference order: the claimed IP unless
// it is a placeholder, then the first X-Forwarded-For hop, then X-Real-IP, then
// the socket peer. Placeholders that survive resolution become Unknown.
func Resolve(c Context) string {
	ip := strings.TrimSpace(c.Claimed)
	if IsPlaceholder(ip) {
		ip = Forwarded(c)
	}
	if IsPlaceholder(ip) {
		return Unknown
	}
	return ip
}

// Forwarded resolves the address from headers and the socket only.
func Forwarded(c Context) string {
	if xff := strings.TrimSpace(c.ForwardedFor); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := strings.TrimSpace(c.RealIP); xri != "" {
		return xri
	}
	return hostOnly(c.RemoteAddr)
}

// IsPlaceholder reports whether ip carries no information about the client:
// empty, "unknown", loopback or unspecified.
func IsPlaceholder(ip string) bool {
	if ip == "" || strings.EqualFold(ip, Unknown) {
		return true
	}
	parsed := net.ParseIP(ip)
	return parsed != nil && (parsed.IsLoopback() || parsed.IsUnspecified())
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
