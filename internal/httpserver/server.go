package httpserver

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PratikDhanave/empleaido-factory/internal/audit"
	"github.com/PratikDhanave/empleaido-factory/internal/auth"
	"github.com/PratikDhanave/empleaido-factory/internal/config"
	"github.com/PratikDhanave/empleaido-factory/internal/handlers"
	"github.com/PratikDhanave/empleaido-factory/internal/ratelimit"
	"github.com/PratikDhanave/empleaido-factory/internal/transcribe"
)

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-ID"

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://cdn.tailwindcss.com https://cdnjs.cloudflare.com; " +
	"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
	"font-src 'self' https://fonts.gstatic.com; " +
	"img-src 'self' data: https:; " +
	"connect-src 'self'; " +
	"object-src 'none'; " +
	"base-uri 'self'; " +
	"form-action 'self';"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Records     handlers.RecordService
	Store       handlers.Pinger
	Sessions    handlers.SessionIssuer
	Audit       audit.Recorder
	Limiter     ratelimit.Limiter
	Transcriber transcribe.Transcriber
	Fetcher     handlers.AudioFetcher
	Inbox       handlers.AudioInbox
	Logger      *slog.Logger
}

// NewRouter wires public endpoints and session-gated APIs.
// Public: /, /api/health, /api/ready, /api/auth/login
// Gated (when REQUIRE_SESSION is set): records, transcribe, webhook
func NewRouter(cfg config.Config, d Deps) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	if d.Audit == nil {
		d.Audit = audit.Discard
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("httpserver: trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), requestContext(d.Logger), securityHeaders())

	limit := handlers.Limit(func(endpoint string) gin.HandlerFunc {
		return ratelimit.Middleware(d.Limiter, ratelimit.Options{
			Endpoint: endpoint,
			Audit:    d.Audit,
			Logger:   d.Logger,
		})
	})

	handlers.RegisterHealthRoutes(r, d.Store)
	handlers.RegisterAuthRoutes(r, d.Sessions, d.Audit)
	handlers.RegisterUIRoutes(r, d.Records, d.Sessions, cfg.CookieSecure)

	api := r.Group("/")
	api.Use(auth.SessionMiddleware(d.Sessions, cfg.RequireSession, d.Audit))

	handlers.RegisterRecordRoutes(api, "/api/records", d.Records, d.Audit, limit)
	// Older clients still call /api/empleaidos.
	handlers.RegisterRecordRoutes(api, "/api/empleaidos", d.Records, d.Audit, limit)
	handlers.RegisterTranscribeRoutes(api, d.Transcriber, cfg.MaxAudioBytes, d.Audit, limit)
	handlers.RegisterWebhookRoutes(api, handlers.WebhookDeps{
		Transcriber: d.Transcriber,
		Fetcher:     d.Fetcher,
		Inbox:       d.Inbox,
		MaxBytes:    cfg.MaxAudioBytes,
		Audit:       d.Audit,
	}, limit)

	return r, nil
}

// requestContext assigns a request id, attaches a request-scoped logger and
// logs one line per request.
func requestContext(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if !requestIDPattern.MatchString(id) {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		l := base.With("request_id", id)
		handlers.SetLogger(c, l)

		start := time.Now()
		c.Next()

		l.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		h.Set("Content-Security-Policy", contentSecurityPolicy)
		c.Next()
	}
}
