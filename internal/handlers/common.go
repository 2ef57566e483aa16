// Package handlers holds the gin route registrations of the HTTP API.
package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/empleaido-factory/internal/models"
	"github.com/PratikDhanave/empleaido-factory/internal/session"
)

// loggerCtxKey holds the request-scoped logger set by the router.
const loggerCtxKey = "logger"

// RecordService is the record API the handlers drive.
type RecordService interface {
	List(ctx context.Context) ([]models.Empleaido, error)
	Create(ctx context.Context, req models.CreateEmpleaidoRequest) (models.Empleaido, error)
	Deploy(ctx context.Context, id string) (models.Empleaido, string, error)
	Delete(ctx context.Context, id string) (models.Empleaido, error)
}

// SessionIssuer mints and checks session tokens.
type SessionIssuer interface {
	Create() (session.Session, error)
	Validate(token string) (bool, error)
	TTL() time.Duration
}

// Limit builds the rate-limit gate for a named endpoint bucket.
type Limit func(endpoint string) gin.HandlerFunc

// For returns the gate for endpoint, or a pass-through when l is nil.
func (l Limit) For(endpoint string) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return l(endpoint)
}

// SetLogger attaches a request-scoped logger to c.
func SetLogger(c *gin.Context, l *slog.Logger) {
	c.Set(loggerCtxKey, l)
}

// Logger returns the request-scoped logger, or slog.Default.
func Logger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerCtxKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}
