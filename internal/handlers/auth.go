package handlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/empleaido-factory/internal/audit"
	"github.com/PratikDhanave/empleaido-factory/internal/auth"
	"github.com/PratikDhanave/empleaido-factory/internal/models"
	"github.com/PratikDhanave/empleaido-factory/internal/web"
)

// RegisterAuthRoutes registers the session endpoints.
//
// POST /api/auth/login issues a fresh session token.
func RegisterAuthRoutes(r gin.IRoutes, sessions SessionIssuer, rec audit.Recorder) {
	if rec == nil {
		rec = audit.Discard
	}

	r.POST("/api/auth/login", func(c *gin.Context) {
		sess, err := sessions.Create()
		if err != nil {
			Logger(c).Error("create session failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
			return
		}

		sum := sha256.Sum256([]byte(sess.Token))
		rec.Record("login", c.ClientIP(), map[string]any{"token_hash": hex.EncodeToString(sum[:])})
		c.JSON(http.StatusOK, models.LoginResponse{
			Token:     sess.Token,
			ExpiresIn: int(sessions.TTL().Seconds()),
		})
	})
}

// RegisterUIRoutes registers GET /, the HTML shell. A browser without a live
// session cookie is given a new one.
func RegisterUIRoutes(r gin.IRoutes, svc RecordService, sessions SessionIssuer, cookieSecure bool) {
	r.GET("/", func(c *gin.Context) {
		records, err := svc.List(c.Request.Context())
		if err != nil {
			Logger(c).Error("list records failed", "error", err)
			c.String(http.StatusInternalServerError, "could not load records")
			return
		}

		token, _ := c.Cookie(auth.CookieName)
		live := false
		if token != "" {
			if live, err = sessions.Validate(token); err != nil {
				Logger(c).Warn("session lookup failed", "error", err)
			}
		}
		if !live {
			sess, err := sessions.Create()
			if err != nil {
				Logger(c).Error("create session failed", "error", err)
				c.String(http.StatusInternalServerError, "could not create session")
				return
			}
			token = sess.Token
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(auth.CookieName, token, int(sessions.TTL().Seconds()), "/", "", cookieSecure, true)
		}

		var buf bytes.Buffer
		if err := web.Render(&buf, web.Page{Records: records, Token: token}); err != nil {
			Logger(c).Error("render index failed", "error", err)
			c.String(http.StatusInternalServerError, "could not render page")
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
	})
}
