package ctxutil

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIP resolves the requesting client address, honouring the first
// X-Forwarded-For hop and X-Real-IP before falling back to gin.
func ClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(c.GetHeader("X-Real-IP")); ip != "" {
		return ip
	}

	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	if c.Request != nil {
		return getIPFromAddr(c.Request.RemoteAddr)
	}

	return "unknown"
}

// getIPFromAddr strips the port from a host:port address
func getIPFromAddr(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
