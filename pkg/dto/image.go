package dto

import (
	"time"

	"github.com/your-org/photostack/internal/models"
)

// IngestResponse describes one ingestion outcome, including dedups.
type IngestResponse struct {
	ID         string               `json:"id"`
	Filename   string               `json:"filename"`
	Deduped    bool                 `json:"deduped"`
	Category   string               `json:"category,omitempty"`
	Tags       []string             `json:"tags"`
	Embedded   bool                 `json:"embedded"`
	Stages     models.StageStatuses `json:"stages"`
	IngestedAt time.Time            `json:"ingested_at"`
}

// NewIngestResponse projects a record into its API form.
func NewIngestResponse(rec *models.ImageRecord, deduped bool) IngestResponse {
	resp := IngestResponse{
		ID:         rec.ID.String(),
		Filename:   rec.Filename,
		Deduped:    deduped,
		Tags:       rec.Tags,
		Embedded:   rec.Embedded,
		Stages:     rec.Stages,
		IngestedAt: rec.IngestedAt,
	}
	if rec.Category != nil {
		resp.Category = string(*rec.Category)
	}
	return resp
}

// BackfillRequest selects which stages to re-run on a stored record.
type BackfillRequest struct {
	Preprocess bool `json:"preprocess"`
	OCR        bool `json:"ocr"`
	AutoTag    bool `json:"auto_tag"`
	Embed      bool `json:"embed"`
}
