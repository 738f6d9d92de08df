package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AllowList restricts clients to configured addresses and CIDR ranges.
// Loopback clients always pass. An empty list allows everyone.
type AllowList struct {
	ips  map[string]struct{}
	nets []*net.IPNet
}

// NewAllowList parses entries like "10.0.0.5" or "10.0.0.0/24". Blank and
// unparseable entries are skipped.
func NewAllowList(entries []string) *AllowList {
	al := &AllowList{ips: make(map[string]struct{})}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			if _, n, err := net.ParseCIDR(e); err == nil {
				al.nets = append(al.nets, n)
			}
			continue
		}
		if ip := net.ParseIP(e); ip != nil {
			al.ips[ip.String()] = struct{}{}
		}
	}
	return al
}

// Empty reports whether no restriction is configured.
func (al *AllowList) Empty() bool {
	return len(al.ips) == 0 && len(al.nets) == 0
}

// Allows checks addr, which may carry a port.
func (al *AllowList) Allows(addr string) bool {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	if addr == "localhost" {
		return true
	}
	ip := net.ParseIP(addr)
	if ip != nil && ip.IsLoopback() {
		return true
	}
	if al.Empty() {
		return true
	}
	if ip == nil {
		return false
	}
	if _, ok := al.ips[ip.String()]; ok {
		return true
	}
	for _, n := range al.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// AllowListMiddleware answers 403 to clients outside the list.
func AllowListMiddleware(al *AllowList, sl *SecurityLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !al.Allows(ip) {
			sl.LogAccessDenied(ip, "address not in allow-list")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}
