package middleware

import (
	"net"
	"strings"

	"ChatRelay/pkg/ctxmeta"

	"github.com/gin-gonic/gin"
)

const (
	headerXRealIP       = "X-Real-IP"
	headerXForwardedFor = "X-Forwarded-For"
	headerClientIP      = "Client-IP"
	headerXClientIP     = "X-Client-IP"
)

// GetClientIP 从 Gin Context 中获取客户端真实 IP
// 优先级：X-Real-IP > X-Forwarded-For > Client-IP > RemoteAddr
func GetClientIP(c *gin.Context) string {
	// 1. 优先使用反向代理设置的真实 IP
	if ip := c.GetHeader(headerXRealIP); ip != "" {
		return strings.TrimSpace(ip)
	}

	// 2. 使用 X-Forwarded-For（代理链），取第一个 IP
	if xff := c.GetHeader(headerXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	// 3. 使用客户端传入的 IP，必须是合法格式
	for _, h := range []string{headerClientIP, headerXClientIP} {
		if ip := c.GetHeader(h); ip != "" && net.ParseIP(ip) != nil {
			return ip
		}
	}

	// 4. 使用 Gin 的 ClientIP 方法（包含 RemoteAddr 逻辑）
	return c.ClientIP()
}

// GetClientIPSafe 获取并校验 IP 格式
func GetClientIPSafe(c *gin.Context) (string, bool) {
	ip := GetClientIP(c)
	if ip == "" || net.ParseIP(ip) == nil {
		return "", false
	}
	return ip, true
}

// ClientIPMiddleware 注入 IP 到 Gin Context 与 request context
func ClientIPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := GetClientIP(c)
		c.Set(ctxmeta.GinClientIP, ip)
		c.Request = c.Request.WithContext(ctxmeta.WithClientIP(c.Request.Context(), ip))
		c.Next()
	}
}

// ClientIPFromGinContext 读取 ClientIPMiddleware 写入的 IP，未经过中间件时退回 c.ClientIP()
func ClientIPFromGinContext(c *gin.Context) string {
	if ip := c.GetString(ctxmeta.GinClientIP); ip != "" {
		return ip
	}
	return c.ClientIP()
}
