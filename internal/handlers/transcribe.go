package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/empleaido-factory/internal/audit"
	"github.com/PratikDhanave/empleaido-factory/internal/models"
	"github.com/PratikDhanave/empleaido-factory/internal/transcribe"
)

// multipartOverhead is headroom for form boundaries and headers on top of the audio cap.
const multipartOverhead = 1 << 20

// RegisterTranscribeRoutes registers POST /api/transcribe, which takes a
// multipart "file" of at most maxBytes and returns its transcription.
func RegisterTranscribeRoutes(r gin.IRoutes, tr transcribe.Transcriber, maxBytes int64, rec audit.Recorder, limit Limit) {
	if rec == nil {
		rec = audit.Discard
	}

	r.POST("/api/transcribe", limit.For("transcribe"), func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)

		fh, err := c.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
			return
		}
		if fh.Size > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		audio, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}

		filename := filepath.Base(fh.Filename)
		res, err := tr.Transcribe(c.Request.Context(), audio, filename)
		switch {
		case errors.Is(err, transcribe.ErrEmptyAudio):
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty file"})
			return
		case err != nil:
			Logger(c).Error("transcription failed", "filename", filename, "error", err)
			rec.Record("transcribe_failed", c.ClientIP(), map[string]any{"filename": filename})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "transcription failed"})
			return
		}

		rec.Record("transcribe", c.ClientIP(), map[string]any{
			"filename": filename,
			"bytes":    len(audio),
			"language": res.Language,
		})
		c.JSON(http.StatusOK, models.TranscribeResponse{Transcription: res, Filename: filename})
	})
}
