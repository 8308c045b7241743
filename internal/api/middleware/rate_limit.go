package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atendezap/atendezap/internal/pkg/ratelimiter"
)

// RateLimitOption parametriza o limite por IP de origem.
type RateLimitOption struct {
	Enabled  bool
	Requests int
	Window   time.Duration
	Prefix   string
	Limiter  ratelimiter.Limiter
	Logger   *zap.Logger
}

// RateLimit aplica janela fixa de requisições por IP do cliente. O limiter
// injetado decide o escopo: em memória (por réplica) ou Redis (global).
func RateLimit(opts RateLimitOption) gin.HandlerFunc {
	if !opts.Enabled || opts.Limiter == nil || opts.Requests <= 0 || opts.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "ratelimit:webhook"
	}

	return func(c *gin.Context) {
		ip := GetClientIP(c)
		if ip == "" {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", prefix, ip)

		res, err := opts.Limiter.Allow(c.Request.Context(), key, opts.Requests, opts.Window)
		if err != nil {
			// limiter indisponível não pode derrubar a ingestão
			if opts.Logger != nil {
				opts.Logger.Warn("rate limit: erro ao consultar limiter", zap.Error(err))
			}
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", opts.Requests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", res.Reset.Unix()))

		if !res.Allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(res.RetryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "limite de requisições excedido",
			})
			return
		}

		c.Next()
	}
}
