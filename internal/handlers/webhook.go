package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/empleaido-factory/internal/audiosource"
	"github.com/PratikDhanave/empleaido-factory/internal/audit"
	"github.com/PratikDhanave/empleaido-factory/internal/models"
	"github.com/PratikDhanave/empleaido-factory/internal/transcribe"
)

// AudioFetcher downloads remote audio.
type AudioFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, string, error)
}

// AudioInbox reads allow-listed local audio.
type AudioInbox interface {
	Read(path string, max int64) ([]byte, string, error)
}

// WebhookDeps are the collaborators of the webhook endpoint.
type WebhookDeps struct {
	Transcriber transcribe.Transcriber
	Fetcher     AudioFetcher
	Inbox       AudioInbox
	MaxBytes    int64
	Audit       audit.Recorder
}

// RegisterWebhookRoutes registers POST /api/webhook for messaging-provider
// callbacks. Non-audio messages are acknowledged and ignored. Audio comes
// from audio_url (preferred) or audio_path and is answered with its
// transcription.
func RegisterWebhookRoutes(r gin.IRoutes, d WebhookDeps, limit Limit) {
	rec := d.Audit
	if rec == nil {
		rec = audit.Discard
	}

	r.POST("/api/webhook", limit.For("webhook"), func(c *gin.Context) {
		var p models.WebhookPayload
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		ip := c.ClientIP()

		if p.MessageType != "audio" {
			rec.Record("webhook_ignored", ip, map[string]any{
				"message_id":   p.MessageID,
				"message_type": p.MessageType,
			})
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		if p.AudioURL == "" && p.AudioPath == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "audio_url or audio_path required"})
			return
		}

		var (
			audio  []byte
			name   string
			err    error
			source = "url"
		)
		if p.AudioURL != "" {
			audio, name, err = d.Fetcher.Fetch(c.Request.Context(), p.AudioURL)
		} else {
			source = "path"
			audio, name, err = d.Inbox.Read(p.AudioPath, d.MaxBytes)
		}
		if err != nil {
			status, msg := audioError(source, err)
			Logger(c).Warn("webhook audio unavailable", "source", source, "message_id", p.MessageID, "error", err)
			rec.Record("webhook_failed", ip, map[string]any{
				"message_id": p.MessageID,
				"source":     source,
				"status":     status,
			})
			c.JSON(status, gin.H{"error": msg})
			return
		}

		res, err := d.Transcriber.Transcribe(c.Request.Context(), audio, name)
		switch {
		case errors.Is(err, transcribe.ErrEmptyAudio):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty audio"})
			return
		case err != nil:
			Logger(c).Error("webhook transcription failed", "message_id", p.MessageID, "error", err)
			rec.Record("webhook_failed", ip, map[string]any{"message_id": p.MessageID, "source": source, "status": http.StatusInternalServerError})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "transcription failed"})
			return
		}

		rec.Record("webhook_transcribed", ip, map[string]any{
			"message_id": p.MessageID,
			"from":       p.From,
			"source":     source,
		})
		c.JSON(http.StatusOK, models.WebhookResponse{
			Status:    "transcribed",
			MessageID: p.MessageID,
			From:      p.From,
			Text:      res.Text,
			Language:  res.Language,
			Duration:  res.Duration,
		})
	})
}

func audioError(source string, err error) (int, string) {
	switch {
	case errors.Is(err, audiosource.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "audio too large"
	case errors.Is(err, audiosource.ErrUnsupportedScheme):
		return http.StatusBadRequest, "audio_url must be an http or https URL"
	case errors.Is(err, audiosource.ErrNotAllowed):
		return http.StatusBadRequest, "audio_path not allowed"
	case errors.Is(err, audiosource.ErrBlockedAddress):
		return http.StatusBadRequest, "audio_url not allowed"
	case source == "url":
		return http.StatusBadGateway, "could not fetch audio"
	default:
		return http.StatusBadRequest, "audio_path not readable"
	}
}
