package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/photostack/internal/models"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) Generate(ctx context.Context, model, prompt string, images ...[]byte) (string, error) {
	f.calls++
	return f.response, f.err
}

func TestParseTagResponse_ValidJSON(t *testing.T) {
	res := ParseTagResponse(`{"category": "receipt", "tags": ["Grocery", " store "], "confidence": 0.9}`)

	assert.True(t, res.Parsed)
	assert.Equal(t, models.CategoryReceipt, res.Category)
	assert.Equal(t, []string{"grocery", "store"}, res.Tags)
	assert.Equal(t, 0.9, res.Confidence)
}

func TestParseTagResponse_JSONWrappedInProse(t *testing.T) {
	raw := "Sure! Here is the classification:\n" +
		`{"category": "screenshot", "tags": ["phone"], "confidence": 0.7}` +
		"\nLet me know if you need anything else."

	res := ParseTagResponse(raw)

	assert.True(t, res.Parsed)
	assert.Equal(t, models.CategoryScreenshot, res.Category)
	assert.Equal(t, []string{"phone"}, res.Tags)
}

func TestParseTagResponse_Malformed(t *testing.T) {
	res := ParseTagResponse("I think this is a receipt from a grocery store.")

	assert.False(t, res.Parsed)
	assert.Equal(t, models.CategoryOther, res.Category)
	assert.Empty(t, res.Tags)
}

func TestParseTagResponse_NearMissCategory(t *testing.T) {
	cases := map[string]models.Category{
		"Receipt":          models.CategoryReceipt,
		"store receipt":    models.CategoryReceipt,
		"serial number":    models.CategorySerialPlate,
		"handwriting":      models.CategoryHandwrittenNotes,
		"a document scan":  models.CategoryDocument,
		"vacation selfie":  models.CategoryOther,
		"whiteboard photo": models.CategoryWhiteboard,
	}
	for input, want := range cases {
		res := ParseTagResponse(`{"category": "` + input + `", "tags": [], "confidence": 0.5}`)
		assert.Equal(t, want, res.Category, "input %q", input)
	}
}

func TestAutoTag_OracleFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}
	tagger := NewAutoTagger(gen, "llava")

	_, err := tagger.AutoTag(context.Background(), []byte("img"), "")
	assert.Error(t, err)
}

func TestAutoTag_PassesOCRTextToPrompt(t *testing.T) {
	gen := &fakeGenerator{response: `{"category": "invoice", "tags": ["bill"], "confidence": 0.8}`}
	tagger := NewAutoTagger(gen, "llava")

	res, err := tagger.AutoTag(context.Background(), []byte("img"), "TOTAL DUE 42.00")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryInvoice, res.Category)
	assert.Equal(t, 1, gen.calls)
}
