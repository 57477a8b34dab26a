package search

import (
	"strings"
	"time"

	"github.com/your-org/photostack/internal/errs"
	"github.com/your-org/photostack/internal/models"
	"github.com/your-org/photostack/internal/storage"
)

// CompileFilter validates a FilterSpec and lowers it into the absolute,
// SQL-ready predicate form. now anchors the relative Days window so the same
// spec compiled at the same instant always yields the same predicate.
func CompileFilter(spec *models.FilterSpec, now time.Time) (*storage.SearchFilter, error) {
	if spec.Empty() {
		return nil, nil
	}

	if spec.Days != nil {
		if *spec.Days < 1 {
			return nil, errs.Validation("days must be at least 1, got %d", *spec.Days)
		}
		if spec.DateMin != nil || spec.DateMax != nil {
			return nil, errs.Validation("days and an absolute date range are mutually exclusive")
		}
	}
	if spec.DateMin != nil && spec.DateMax != nil && spec.DateMin.After(*spec.DateMax) {
		return nil, errs.Validation("date_min is after date_max")
	}
	if spec.ConfidenceMin != nil && (*spec.ConfidenceMin < 0 || *spec.ConfidenceMin > 1) {
		return nil, errs.Validation("confidence_min must be in [0, 1], got %g", *spec.ConfidenceMin)
	}
	if spec.Category != "" && !models.Category(spec.Category).Valid() {
		return nil, errs.Validation("unknown category %q", spec.Category)
	}

	f := &storage.SearchFilter{
		ConfidenceMin: spec.ConfidenceMin,
		Category:      spec.Category,
	}

	if spec.Days != nil {
		after := now.UTC().AddDate(0, 0, -*spec.Days)
		f.IngestedAfter = &after
	}
	if spec.DateMin != nil {
		after := spec.DateMin.UTC()
		f.IngestedAfter = &after
	}
	if spec.DateMax != nil {
		before := spec.DateMax.UTC()
		f.IngestedBefore = &before
	}

	if spec.Tag != "" {
		f.TagLike = escapeLike(strings.ToLower(strings.TrimSpace(spec.Tag)))
	}
	for _, t := range spec.Tags {
		if s := strings.ToLower(strings.TrimSpace(t)); s != "" {
			f.TagsAll = append(f.TagsAll, s)
		}
	}
	if spec.ContainsText != "" {
		f.TextLike = escapeLike(spec.ContainsText)
	}
	if spec.Device != "" {
		f.DeviceLike = escapeLike(strings.TrimSpace(spec.Device))
	}

	return f, nil
}

// escapeLike neutralizes LIKE metacharacters so user terms match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
