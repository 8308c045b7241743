package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetClientIP resolve o IP real do cliente atrás de proxies/CDN, na ordem
// dos cabeçalhos mais confiáveis para os menos confiáveis.
func GetClientIP(c *gin.Context) string {
	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		if validIP := validateIP(ip); validIP != "" {
			return validIP
		}
	}

	if ips := c.GetHeader("X-Forwarded-For"); ips != "" {
		parts := strings.Split(ips, ",")
		for _, part := range parts {
			if validIP := validateIP(strings.TrimSpace(part)); validIP != "" {
				return validIP
			}
		}
	}

	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		if validIP := validateIP(ip); validIP != "" {
			return validIP
		}
	}

	return c.ClientIP()
}

func validateIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}

	// descarta porta quando vier junto (ex.: "1.2.3.4:5678")
	if strings.Contains(ip, ":") && strings.Count(ip, ":") == 1 {
		parts := strings.Split(ip, ":")
		ip = parts[0]
	}

	if net.ParseIP(ip) != nil {
		return ip
	}

	return ""
}
