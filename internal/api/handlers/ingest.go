package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photostack/internal/pipeline"
	"github.com/your-org/photostack/pkg/dto"
)

type IngestHandler struct {
	orchestrator *pipeline.Orchestrator
	defaults     pipeline.Options
}

func NewIngestHandler(orchestrator *pipeline.Orchestrator, defaults pipeline.Options) *IngestHandler {
	return &IngestHandler{orchestrator: orchestrator, defaults: defaults}
}

// Create accepts a multipart image upload and runs the full ingestion
// pipeline on it. Form fields may override the configured stage toggles.
func (h *IngestHandler) Create(c *gin.Context) {
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	opts := h.defaults
	applyToggle(c, "preprocess", &opts.Preprocess)
	applyToggle(c, "ocr", &opts.OCR)
	applyToggle(c, "auto_tag", &opts.AutoTag)
	applyToggle(c, "embed", &opts.Embed)

	rec, deduped, err := h.orchestrator.Ingest(c.Request.Context(), header.Filename, raw, opts)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if deduped {
		status = http.StatusOK
	}
	c.JSON(status, dto.NewIngestResponse(rec, deduped))
}

func applyToggle(c *gin.Context, field string, dst *bool) {
	if v := c.PostForm(field); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
