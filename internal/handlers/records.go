package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/empleaido-factory/internal/audit"
	"github.com/PratikDhanave/empleaido-factory/internal/factory"
	"github.com/PratikDhanave/empleaido-factory/internal/models"
	"github.com/PratikDhanave/empleaido-factory/internal/validate"
)

// RegisterRecordRoutes registers the record CRUD endpoints under base.
//
// GET    base           list every record
// POST   base           create a record (201)
// POST   base/:id/deploy publish the record as a skill
// DELETE base/:id       delete the record and its published skill
//
// Every route is rate limited per client address and endpoint.
func RegisterRecordRoutes(r gin.IRoutes, base string, svc RecordService, rec audit.Recorder, limit Limit) {
	if rec == nil {
		rec = audit.Discard
	}

	r.GET(base, limit.For("get_records"), func(c *gin.Context) {
		records, err := svc.List(c.Request.Context())
		if err != nil {
			Logger(c).Error("list records failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load records"})
			return
		}
		rec.Record("get_records", c.ClientIP(), map[string]any{"count": len(records)})
		c.JSON(http.StatusOK, records)
	})

	r.POST(base, limit.For("create_record"), func(c *gin.Context) {
		var req models.CreateEmpleaidoRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		created, err := svc.Create(c.Request.Context(), req)
		var ve *validate.Error
		switch {
		case errors.As(err, &ve):
			rec.Record("create_record_invalid", c.ClientIP(), map[string]any{"field": ve.Field})
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
			return
		case err != nil:
			Logger(c).Error("create record failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save record"})
			return
		}

		rec.Record("create_record", c.ClientIP(), map[string]any{"id": created.ID, "name": created.Name})
		c.JSON(http.StatusCreated, created)
	})

	r.POST(base+"/:id/deploy", limit.For("deploy_record"), func(c *gin.Context) {
		id := c.Param("id")
		deployed, path, err := svc.Deploy(c.Request.Context(), id)
		switch {
		case errors.Is(err, factory.ErrInvalidID):
			rec.Record("invalid_id", c.ClientIP(), map[string]any{"id": truncateID(id)})
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid empleaido id"})
			return
		case errors.Is(err, factory.ErrNotFound):
			rec.Record("deploy_not_found", c.ClientIP(), map[string]any{"id": id})
			c.JSON(http.StatusNotFound, gin.H{"error": "empleaido not found"})
			return
		case errors.Is(err, factory.ErrPublish):
			Logger(c).Error("deploy failed", "id", id, "error", err)
			rec.Record("deploy_failed", c.ClientIP(), map[string]any{"id": id})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "deployment failed"})
			return
		case err != nil:
			Logger(c).Error("deploy failed", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "deployment failed"})
			return
		}

		rec.Record("deploy_record", c.ClientIP(), map[string]any{"id": id, "name": deployed.Name})
		c.JSON(http.StatusOK, models.DeployResponse{
			Message:   fmt.Sprintf("Empleaido %s deployed successfully", deployed.Name),
			SkillPath: path,
			Empleaido: deployed,
		})
	})

	r.DELETE(base+"/:id", limit.For("delete_record"), func(c *gin.Context) {
		id := c.Param("id")
		_, err := svc.Delete(c.Request.Context(), id)
		switch {
		case errors.Is(err, factory.ErrInvalidID):
			rec.Record("invalid_id", c.ClientIP(), map[string]any{"id": truncateID(id)})
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid empleaido id"})
			return
		case errors.Is(err, factory.ErrNotFound):
			rec.Record("delete_not_found", c.ClientIP(), map[string]any{"id": id})
			c.JSON(http.StatusNotFound, gin.H{"error": "empleaido not found"})
			return
		case err != nil:
			Logger(c).Error("delete failed", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete record"})
			return
		}

		rec.Record("delete_record", c.ClientIP(), map[string]any{"id": id})
		c.JSON(http.StatusOK, gin.H{"message": "deleted"})
	})
}

// truncateID keeps hostile ids from bloating the audit file.
func truncateID(id string) string {
	return validate.SanitizeText(id, 100)
}
