package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photostack/internal/pipeline"
	"github.com/your-org/photostack/internal/storage"
	"github.com/your-org/photostack/pkg/dto"
)

type ImageHandler struct {
	db           *storage.PostgresStore
	minio        *storage.MinIOStore
	orchestrator *pipeline.Orchestrator
}

func NewImageHandler(db *storage.PostgresStore, minio *storage.MinIOStore, orchestrator *pipeline.Orchestrator) *ImageHandler {
	return &ImageHandler{db: db, minio: minio, orchestrator: orchestrator}
}

func (h *ImageHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}

	rec, err := h.db.GetRecord(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	c.JSON(http.StatusOK, rec)
}

// Raw serves the original bytes exactly as they were ingested.
func (h *ImageHandler) Raw(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}

	rec, err := h.db.GetRecord(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), rec.RawKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch image failed"})
		return
	}

	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// Backfill re-runs selected pipeline stages on a stored record.
func (h *ImageHandler) Backfill(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image id"})
		return
	}

	var req dto.BackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Preprocess && !req.OCR && !req.AutoTag && !req.Embed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one stage must be selected"})
		return
	}

	rec, err := h.orchestrator.Backfill(c.Request.Context(), id, pipeline.Options{
		Preprocess: req.Preprocess,
		OCR:        req.OCR,
		AutoTag:    req.AutoTag,
		Embed:      req.Embed,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewIngestResponse(rec, false))
}
