package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/your-org/photostack/internal/models"
)

// Generator is the single-call completion capability AutoTagger needs.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, images ...[]byte) (string, error)
}

// TagResult is the typed parse of the vision oracle's tagging output.
// Parsed is false when the model's output was malformed and the category is
// the "other" fallback.
type TagResult struct {
	Category   models.Category
	Tags       []string
	Confidence float64
	Parsed     bool
	Raw        json.RawMessage
}

// AutoTagger classifies images into the closed category set and extracts
// searchable tags using a vision-capable model.
type AutoTagger struct {
	gen   Generator
	model string
}

func NewAutoTagger(gen Generator, model string) *AutoTagger {
	return &AutoTagger{gen: gen, model: model}
}

func categoriesList() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func buildTagPrompt(ocrText string) string {
	examples := categoriesList()
	var b strings.Builder
	b.WriteString("Classify the given image into ONE of these categories:\n\n")
	b.WriteString(examples)
	b.WriteString("\n\nAnd generate 3-10 short tags that will help the user search later.\n\n")
	b.WriteString(`Guidelines:
- A store receipt or purchase slip is "receipt".
- A bill with charges is "invoice".
- A serial number plate or label on a device is "serial_plate".
- A letter, printout, or typed text is "document".
- A form to fill in is "form".
- Handwritten notes on paper are "handwritten_notes".
- A whiteboard with writing is "whiteboard".
- A phone or computer screenshot is "screenshot".
- A small card or label with info (business card, medication card) is "info_card".
- A photo that is mostly an object (appliance, tool, machine) is "photo_of_object".
- Use "other" if none of these fit.

Respond in JSON ONLY, with this structure:

{"category": "<one of the categories>", "tags": ["short", "searchable", "tags"], "confidence": 0.0}

If unsure, pick the closest category with low confidence.
`)
	if ocrText != "" {
		if len(ocrText) > 4000 {
			ocrText = ocrText[:4000]
		}
		b.WriteString("\nOCR TEXT (may be noisy, but useful):\n")
		b.WriteString(ocrText)
	}
	return b.String()
}

// AutoTag runs the vision model on the image and parses its response into a
// TagResult. Only an oracle-call failure is an error; malformed output maps
// to the "other" fallback so tagging never sinks the whole pipeline.
func (t *AutoTagger) AutoTag(ctx context.Context, image []byte, ocrText string) (*TagResult, error) {
	raw, err := t.gen.Generate(ctx, t.model, buildTagPrompt(ocrText), image)
	if err != nil {
		return nil, fmt.Errorf("vision oracle: %w", err)
	}
	return ParseTagResponse(raw), nil
}

type tagPayload struct {
	Category   string   `json:"category"`
	Tags       []string `json:"tags"`
	Confidence float64  `json:"confidence"`
}

// ParseTagResponse maps loosely structured model output into the closed
// category set. Output that does not parse as JSON yields the "other"
// fallback with Parsed=false; an unknown category maps to the nearest
// canonical one while keeping whatever tags were extractable.
func ParseTagResponse(raw string) *TagResult {
	jsonStr := extractJSON(raw)
	var payload tagPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return &TagResult{
			Category: models.CategoryOther,
			Tags:     []string{},
		}
	}

	category := canonicalCategory(payload.Category)

	tags := make([]string, 0, len(payload.Tags))
	for _, t := range payload.Tags {
		if s := strings.ToLower(strings.TrimSpace(t)); s != "" {
			tags = append(tags, s)
		}
	}

	return &TagResult{
		Category:   category,
		Tags:       tags,
		Confidence: payload.Confidence,
		Parsed:     true,
		Raw:        json.RawMessage(jsonStr),
	}
}

// extractJSON pulls the JSON object out of a response that may wrap it in
// prose (some models add text around the requested JSON).
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start != -1 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

// canonicalCategory normalizes a model-reported category into the closed
// enumeration, with best-effort mapping for near misses.
func canonicalCategory(s string) models.Category {
	name := strings.ToLower(strings.TrimSpace(s))
	c := models.Category(name)
	if c.Valid() {
		return c
	}

	switch {
	case strings.Contains(name, "receipt"):
		return models.CategoryReceipt
	case strings.Contains(name, "invoice"):
		return models.CategoryInvoice
	case strings.Contains(name, "serial"), strings.Contains(name, "plate"):
		return models.CategorySerialPlate
	case strings.Contains(name, "whiteboard"):
		return models.CategoryWhiteboard
	case strings.Contains(name, "screenshot"):
		return models.CategoryScreenshot
	case strings.Contains(name, "handwrit"):
		return models.CategoryHandwrittenNotes
	case strings.Contains(name, "form"):
		return models.CategoryForm
	case strings.Contains(name, "doc"):
		return models.CategoryDocument
	}
	return models.CategoryOther
}
