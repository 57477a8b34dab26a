package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// Category is the closed set of labels the auto-tagger may assign.
type Category string

const (
	CategoryReceipt          Category = "receipt"
	CategoryInvoice          Category = "invoice"
	CategoryIDCard           Category = "id_card"
	CategorySerialPlate      Category = "serial_plate"
	CategoryDocument         Category = "document"
	CategoryForm             Category = "form"
	CategoryHandwrittenNotes Category = "handwritten_notes"
	CategoryWhiteboard       Category = "whiteboard"
	CategoryScreenshot       Category = "screenshot"
	CategoryInfoCard         Category = "info_card"
	CategoryPhotoOfObject    Category = "photo_of_object"
	CategoryOther            Category = "other"
)

// Categories lists every valid category in prompt order.
var Categories = []Category{
	CategoryReceipt,
	CategoryInvoice,
	CategoryIDCard,
	CategorySerialPlate,
	CategoryDocument,
	CategoryForm,
	CategoryHandwrittenNotes,
	CategoryWhiteboard,
	CategoryScreenshot,
	CategoryInfoCard,
	CategoryPhotoOfObject,
	CategoryOther,
}

// Valid reports whether c is one of the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// StageStatus records the outcome of one pipeline stage on a record.
type StageStatus string

const (
	StageSkipped StageStatus = "skipped"
	StageOK      StageStatus = "ok"
	StageFailed  StageStatus = "failed"
)

// StageStatuses captures per-stage outcomes so callers can tell "OCR was
// attempted but failed" apart from "OCR never ran".
type StageStatuses struct {
	Preprocess StageStatus `json:"preprocess"`
	OCR        StageStatus `json:"ocr"`
	AutoTag    StageStatus `json:"auto_tag"`
	Embed      StageStatus `json:"embed"`
}

// ImageRecord is the unit of storage: one ingested image and every signal
// derived from it. Immutable once committed, except via explicit backfill.
type ImageRecord struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	Filename      string        `json:"filename" db:"filename"`
	RawKey        string        `json:"raw_key" db:"raw_key"`
	OCRVariantKey string        `json:"ocr_variant_key,omitempty" db:"ocr_variant_key"`
	VisVariantKey string        `json:"vis_variant_key,omitempty" db:"vis_variant_key"`
	ContentHash   string        `json:"content_hash" db:"content_hash"`
	OCRText       *string       `json:"ocr_text,omitempty" db:"ocr_text"`
	OCRConfidence *float64      `json:"ocr_confidence,omitempty" db:"ocr_confidence"`
	CapturedAt    *time.Time    `json:"captured_at,omitempty" db:"captured_at"`
	DeviceMake    *string       `json:"device_make,omitempty" db:"device_make"`
	DeviceModel   *string       `json:"device_model,omitempty" db:"device_model"`
	Orientation   *int          `json:"orientation,omitempty" db:"orientation"`
	Category      *Category     `json:"category,omitempty" db:"category"`
	Tags          []string      `json:"tags" db:"tags"`
	TagConfidence *float64      `json:"tag_confidence,omitempty" db:"tag_confidence"`
	Embedding     []float32     `json:"-" db:"embedding"`
	Embedded      bool          `json:"embedded" db:"embedded"`
	Stages        StageStatuses `json:"stages"`
	IngestedAt    time.Time     `json:"ingested_at" db:"ingested_at"`
}

// recordNamespace salts content-derived IDs so they can't collide with
// UUIDs minted for any other purpose.
var recordNamespace = uuid.MustParse("6ba7b812-9dad-11d1-80b4-00c04fd430c8")

// ContentHash returns the hex sha256 digest of raw image bytes.
func ContentHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// RecordID derives the record identifier from a content hash. The mapping is
// deterministic: byte-identical content always resolves to the same ID.
func RecordID(contentHash string) uuid.UUID {
	return uuid.NewSHA1(recordNamespace, []byte(contentHash))
}
