package models

import "time"

// FilterSpec is the closed set of optional constraints a caller may apply to
// text search and Q&A. All populated fields are AND-ed together. A relative
// Days window and an absolute date range are mutually exclusive.
type FilterSpec struct {
	Days          *int       `json:"days,omitempty"`
	DateMin       *time.Time `json:"date_min,omitempty"`
	DateMax       *time.Time `json:"date_max,omitempty"`
	Tag           string     `json:"tag,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	ContainsText  string     `json:"contains_text,omitempty"`
	ConfidenceMin *float64   `json:"confidence_min,omitempty"`
	Device        string     `json:"device,omitempty"`
	Category      string     `json:"category,omitempty"`
}

// Empty reports whether no constraint is set.
func (f *FilterSpec) Empty() bool {
	if f == nil {
		return true
	}
	return f.Days == nil && f.DateMin == nil && f.DateMax == nil &&
		f.Tag == "" && len(f.Tags) == 0 && f.ContainsText == "" &&
		f.ConfidenceMin == nil && f.Device == "" && f.Category == ""
}

// MatchResult is one ranked hit from a similarity search: the record ID, a
// similarity score (higher is more similar) and a display projection of the
// matched record.
type MatchResult struct {
	ID            string     `json:"id"`
	Score         float32    `json:"score"`
	Filename      string     `json:"filename"`
	RawKey        string     `json:"raw_key"`
	OCRVariantKey string     `json:"ocr_variant_key,omitempty"`
	VisVariantKey string     `json:"vis_variant_key,omitempty"`
	OCRText       *string    `json:"ocr_text,omitempty"`
	OCRConfidence *float64   `json:"ocr_confidence,omitempty"`
	DeviceMake    *string    `json:"device_make,omitempty"`
	DeviceModel   *string    `json:"device_model,omitempty"`
	Category      *Category  `json:"category,omitempty"`
	Tags          []string   `json:"tags"`
	IngestedAt    *time.Time `json:"ingested_at,omitempty"`
}
