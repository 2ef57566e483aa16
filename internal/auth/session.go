package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/empleaido-factory/internal/audit"
)

const (
	// CookieName is the browser session cookie.
	CookieName = "empleaido_session"
	// HeaderName carries the session token for API clients.
	HeaderName = "X-Auth-Token"

	// tokenCtxKey is the gin context key holding a validated session token.
	tokenCtxKey = "session_token"
)

// Validator checks session tokens.
type Validator interface {
	Validate(token string) (bool, error)
}

// RequestToken returns the token presented by the client, header first, then cookie.
func RequestToken(c *gin.Context) string {
	if tok := strings.TrimSpace(c.GetHeader(HeaderName)); tok != "" {
		return tok
	}
	tok, _ := c.Cookie(CookieName)
	return tok
}

// SessionMiddleware resolves the caller's session. A valid token is stored in
// the context for Token. When required is set, requests without a live session
// are rejected with 401; otherwise they continue anonymously.
func SessionMiddleware(sessions Validator, required bool, rec audit.Recorder) gin.HandlerFunc {
	if rec == nil {
		rec = audit.Discard
	}
	return func(c *gin.Context) {
		tok := RequestToken(c)

		ok := false
		if tok != "" {
			var err error
			ok, err = sessions.Validate(tok)
			if err != nil {
				slog.Warn("session lookup failed", "error", err)
				ok = false
			}
		}

		if ok {
			c.Set(tokenCtxKey, tok)
			c.Next()
			return
		}
		if !required {
			c.Next()
			return
		}

		rec.Record("session_rejected", c.ClientIP(), map[string]any{
			"path":          c.FullPath(),
			"token_present": tok != "",
		})
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
}

// Token returns the validated session token, or "" for anonymous requests.
func Token(c *gin.Context) string {
	v, _ := c.Get(tokenCtxKey)
	s, _ := v.(string)
	return s
}
