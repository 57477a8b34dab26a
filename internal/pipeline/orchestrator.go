package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photostack/internal/config"
	"github.com/your-org/photostack/internal/errs"
	"github.com/your-org/photostack/internal/models"
	"github.com/your-org/photostack/internal/observability"
	"github.com/your-org/photostack/internal/oracle"
)

// RecordStore is the record persistence the orchestrator depends on.
type RecordStore interface {
	GetRecord(ctx context.Context, id uuid.UUID) (*models.ImageRecord, error)
	UpsertRecord(ctx context.Context, rec *models.ImageRecord) error
}

// BlobStore holds the raw image and its derived variants.
type BlobStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// OCROracle extracts text from an image.
type OCROracle interface {
	Extract(ctx context.Context, filename string, image []byte) (*oracle.OCRResult, error)
}

// Tagger assigns a category and tags to an image.
type Tagger interface {
	AutoTag(ctx context.Context, image []byte, ocrText string) (*oracle.TagResult, error)
}

// Embedder produces the record's unified vector.
type Embedder interface {
	EmbedImageAndText(ctx context.Context, image []byte, text string) ([]float32, error)
}

// EventPublisher announces committed records. Optional; nil disables it.
type EventPublisher interface {
	PublishIngested(ctx context.Context, rec *models.ImageRecord, deduped bool) error
}

// Options selects which derivation stages run for one ingestion.
type Options struct {
	Preprocess bool
	OCR        bool
	AutoTag    bool
	Embed      bool
}

// OptionsFromConfig resolves the configured stage toggles into Options.
func OptionsFromConfig(cfg config.IngestConfig) Options {
	on := func(v *bool) bool { return v == nil || *v }
	return Options{
		Preprocess: on(cfg.Preprocess),
		OCR:        on(cfg.OCR),
		AutoTag:    on(cfg.AutoTag),
		Embed:      on(cfg.Embed),
	}
}

// Orchestrator runs the ingestion pipeline: persist the original, derive
// signals stage by stage, commit one record. Oracle stages degrade
// individually; only blob or record persistence failures abort an ingestion.
type Orchestrator struct {
	store    RecordStore
	blobs    BlobStore
	pre      *Preprocessor
	ocr      OCROracle
	tagger   Tagger
	embedder Embedder
	events   EventPublisher
	logger   *slog.Logger
}

func NewOrchestrator(
	store RecordStore,
	blobs BlobStore,
	pre *Preprocessor,
	ocr OCROracle,
	tagger Tagger,
	embedder Embedder,
	events EventPublisher,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    store,
		blobs:    blobs,
		pre:      pre,
		ocr:      ocr,
		tagger:   tagger,
		embedder: embedder,
		events:   events,
		logger:   logger,
	}
}

// Ingest runs the full pipeline on raw image bytes. Byte-identical content
// resolves to an existing record and returns it with deduped=true without
// touching storage again.
func (o *Orchestrator) Ingest(ctx context.Context, filename string, raw []byte, opts Options) (*models.ImageRecord, bool, error) {
	if len(raw) == 0 {
		return nil, false, errs.Validation("empty image payload")
	}

	hash := models.ContentHash(raw)
	id := models.RecordID(hash)

	existing, err := o.store.GetRecord(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		observability.IngestsTotal.WithLabelValues("dedup").Inc()
		o.logger.Info("duplicate content, returning existing record",
			"id", id, "filename", filename)
		o.publish(ctx, existing, true)
		return existing, true, nil
	}

	now := time.Now().UTC()
	rawKey := fmt.Sprintf("raw/%s_%s_%s", now.Format("20060102T150405Z"), id, sanitizeFilename(filename))

	if err := o.blobs.PutObject(ctx, rawKey, raw, contentTypeFor(filename)); err != nil {
		observability.IngestsTotal.WithLabelValues("failed").Inc()
		return nil, false, fmt.Errorf("store raw image: %w", err)
	}

	rec := &models.ImageRecord{
		ID:          id,
		Filename:    filename,
		RawKey:      rawKey,
		ContentHash: hash,
		Tags:        []string{},
		Stages: models.StageStatuses{
			Preprocess: models.StageSkipped,
			OCR:        models.StageSkipped,
			AutoTag:    models.StageSkipped,
			Embed:      models.StageSkipped,
		},
		IngestedAt: now,
	}

	o.runStages(ctx, rec, raw, opts)

	if err := o.store.UpsertRecord(ctx, rec); err != nil {
		observability.IngestsTotal.WithLabelValues("failed").Inc()
		return nil, false, fmt.Errorf("commit record: %w", err)
	}

	observability.IngestsTotal.WithLabelValues("committed").Inc()
	o.logger.Info("image ingested",
		"id", rec.ID,
		"filename", rec.Filename,
		"category", categoryLabel(rec.Category),
		"tags", len(rec.Tags),
		"embedded", rec.Embedded)
	o.publish(ctx, rec, false)
	return rec, false, nil
}

// Backfill re-runs the selected stages on an already committed record, using
// the stored original bytes. Fields owned by disabled stages are untouched.
func (o *Orchestrator) Backfill(ctx context.Context, id uuid.UUID, opts Options) (*models.ImageRecord, error) {
	rec, err := o.store.GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if rec == nil {
		return nil, errs.ErrNotFound
	}

	raw, err := o.blobs.GetObject(ctx, rec.RawKey)
	if err != nil {
		return nil, fmt.Errorf("fetch original: %w", err)
	}

	o.runStages(ctx, rec, raw, opts)

	if err := o.store.UpsertRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("commit record: %w", err)
	}

	o.logger.Info("record backfilled", "id", rec.ID,
		"preprocess", opts.Preprocess, "ocr", opts.OCR,
		"auto_tag", opts.AutoTag, "embed", opts.Embed)
	return rec, nil
}

// runStages mutates rec with the outcome of each enabled stage. EXIF metadata
// always refreshes; it needs no oracle and never fails.
func (o *Orchestrator) runStages(ctx context.Context, rec *models.ImageRecord, raw []byte, opts Options) {
	ocrInput := raw
	visInput := raw

	if opts.Preprocess {
		ocrVariant, err1 := o.pre.OCRVariant(raw)
		visVariant, err2 := o.pre.VisionVariant(raw)
		if err1 != nil || err2 != nil {
			rec.Stages.Preprocess = models.StageFailed
			observability.StageFailures.WithLabelValues("preprocess").Inc()
			o.logger.Warn("preprocess failed, using original bytes",
				"id", rec.ID, "ocr_err", err1, "vision_err", err2)
		} else {
			ocrKey := fmt.Sprintf("variants/ocr/%s.jpg", rec.ID)
			visKey := fmt.Sprintf("variants/vision/%s.jpg", rec.ID)
			if err := o.blobs.PutObject(ctx, ocrKey, ocrVariant, "image/jpeg"); err == nil {
				rec.OCRVariantKey = ocrKey
			}
			if err := o.blobs.PutObject(ctx, visKey, visVariant, "image/jpeg"); err == nil {
				rec.VisVariantKey = visKey
			}
			ocrInput = ocrVariant
			visInput = visVariant
			rec.Stages.Preprocess = models.StageOK
		}
	}

	if opts.OCR {
		res, err := o.ocr.Extract(ctx, rec.Filename, ocrInput)
		if err != nil {
			rec.Stages.OCR = models.StageFailed
			observability.StageFailures.WithLabelValues("ocr").Inc()
			o.logger.Warn("ocr failed", "id", rec.ID, "error", err)
		} else {
			if text := strings.TrimSpace(res.Text); text != "" {
				rec.OCRText = &text
				conf := res.Confidence
				rec.OCRConfidence = &conf
			}
			rec.Stages.OCR = models.StageOK
		}
	}

	meta := ExtractMetadata(raw)
	rec.CapturedAt = meta.CapturedAt
	rec.DeviceMake = meta.DeviceMake
	rec.DeviceModel = meta.DeviceModel
	rec.Orientation = meta.Orientation

	if opts.AutoTag {
		res, err := o.tagger.AutoTag(ctx, visInput, ocrText(rec))
		if err != nil {
			rec.Stages.AutoTag = models.StageFailed
			observability.StageFailures.WithLabelValues("auto_tag").Inc()
			o.logger.Warn("auto-tagging failed", "id", rec.ID, "error", err)
		} else {
			cat := res.Category
			rec.Category = &cat
			rec.Tags = res.Tags
			if res.Parsed {
				conf := res.Confidence
				rec.TagConfidence = &conf
			} else {
				rec.TagConfidence = nil
				o.logger.Warn("tag response malformed, using fallback category",
					"id", rec.ID)
			}
			rec.Stages.AutoTag = models.StageOK
		}
	}

	if opts.Embed {
		vec, err := o.embedder.EmbedImageAndText(ctx, visInput, ocrText(rec))
		if err != nil {
			rec.Embedding = nil
			rec.Embedded = false
			rec.Stages.Embed = models.StageFailed
			observability.StageFailures.WithLabelValues("embed").Inc()
			o.logger.Warn("embedding failed", "id", rec.ID, "error", err)
		} else {
			rec.Embedding = vec
			rec.Embedded = true
			rec.Stages.Embed = models.StageOK
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, rec *models.ImageRecord, deduped bool) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishIngested(ctx, rec, deduped); err != nil {
		o.logger.Warn("publish ingest event failed", "id", rec.ID, "error", err)
	}
}

func ocrText(rec *models.ImageRecord) string {
	if rec.OCRText == nil {
		return ""
	}
	return *rec.OCRText
}

func categoryLabel(c *models.Category) string {
	if c == nil {
		return ""
	}
	return string(*c)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
