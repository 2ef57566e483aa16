package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/empleaido-factory/internal/audit"
)

// Options configures Middleware.
type Options struct {
	// Endpoint names the bucket, e.g. "create_record".
	Endpoint string
	Audit    audit.Recorder
	Logger   *slog.Logger
}

// Middleware gates a route on limiter, keyed by the client address gin resolves
// (honoring the engine's trusted proxies). A limiter error admits the request.
func Middleware(limiter Limiter, opts Options) gin.HandlerFunc {
	if opts.Audit == nil {
		opts.Audit = audit.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		dec, err := limiter.Admit(c.Request.Context(), ip, opts.Endpoint)
		if err != nil {
			opts.Logger.Warn("rate limiter unavailable, admitting request",
				"endpoint", opts.Endpoint, "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(dec.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))

		if !dec.Allowed {
			c.Header("Retry-After", retryAfterSeconds(dec.RetryAfter))
			opts.Audit.Record("rate_limit_exceeded", ip, map[string]any{"endpoint": opts.Endpoint})
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// retryAfterSeconds rounds up and never advertises less than one second.
func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
