package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/photostack/internal/errs"
	"github.com/your-org/photostack/internal/models"
)

type fakeSearcher struct {
	matches  []models.MatchResult
	err      error
	lastTopK *int
}

func (f *fakeSearcher) SearchText(ctx context.Context, query string, spec *models.FilterSpec, topK *int) ([]models.MatchResult, error) {
	f.lastTopK = topK
	return f.matches, f.err
}

type fakeQAGenerator struct {
	response   string
	err        error
	calls      int
	lastPrompt string
}

func (f *fakeQAGenerator) Generate(ctx context.Context, model, prompt string, images ...[]byte) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	return f.response, f.err
}

func sampleMatches() []models.MatchResult {
	text := "GROCERY MART\nTOTAL 42.17"
	cat := models.CategoryReceipt
	return []models.MatchResult{
		{ID: "a", Score: 0.91, Filename: "receipt1.jpg", Category: &cat, Tags: []string{"grocery"}, OCRText: &text},
		{ID: "b", Score: 0.74, Filename: "board.jpg", Tags: []string{}},
	}
}

func TestAnswer_EmptyQuestionRejected(t *testing.T) {
	a := NewAnswerer(&fakeSearcher{}, &fakeQAGenerator{}, "phi4:14b", 8, nil)

	_, err := a.Answer(context.Background(), "  ", nil, nil)
	assert.True(t, errs.IsValidation(err))
}

func TestAnswer_ZeroMatchesSkipsModel(t *testing.T) {
	gen := &fakeQAGenerator{}
	a := NewAnswerer(&fakeSearcher{matches: []models.MatchResult{}}, gen, "phi4:14b", 8, nil)

	res, err := a.Answer(context.Background(), "how much was the last receipt?", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, NoRelevantImagesAnswer, res.Answer)
	assert.Empty(t, res.Matches)
	assert.Equal(t, 0, gen.calls, "language model must not be called without matches")
}

func TestAnswer_GroundsPromptOnMatches(t *testing.T) {
	gen := &fakeQAGenerator{response: "The total was 42.17 (image 1)."}
	a := NewAnswerer(&fakeSearcher{matches: sampleMatches()}, gen, "phi4:14b", 8, nil)

	res, err := a.Answer(context.Background(), "how much did I spend?", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "The total was 42.17 (image 1).", res.Answer)
	assert.Len(t, res.Matches, 2)

	assert.Contains(t, gen.lastPrompt, "receipt1.jpg")
	assert.Contains(t, gen.lastPrompt, "TOTAL 42.17")
	assert.Contains(t, gen.lastPrompt, "how much did I spend?")
	// Context blocks come in ranked order.
	assert.Less(t,
		strings.Index(gen.lastPrompt, "receipt1.jpg"),
		strings.Index(gen.lastPrompt, "board.jpg"))
}

func TestAnswer_SynthesisFailureKeepsMatches(t *testing.T) {
	gen := &fakeQAGenerator{err: errors.New("model overloaded")}
	a := NewAnswerer(&fakeSearcher{matches: sampleMatches()}, gen, "phi4:14b", 8, nil)

	res, err := a.Answer(context.Background(), "what's on the whiteboard?", nil, nil)
	require.Error(t, err)
	assert.True(t, errs.IsSynthesis(err))
	require.NotNil(t, res)
	assert.Len(t, res.Matches, 2)
}

func TestAnswer_TopKReachesRetrieval(t *testing.T) {
	searcher := &fakeSearcher{matches: sampleMatches()}
	gen := &fakeQAGenerator{response: "ok"}
	a := NewAnswerer(searcher, gen, "phi4:14b", 8, nil)

	_, err := a.Answer(context.Background(), "any receipts this week?", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, searcher.lastTopK)
	assert.Equal(t, 8, *searcher.lastTopK, "unset top_k uses the configured retrieval depth")

	_, err = a.Answer(context.Background(), "any receipts this week?", nil, topKPtr(3))
	require.NoError(t, err)
	require.NotNil(t, searcher.lastTopK)
	assert.Equal(t, 3, *searcher.lastTopK, "caller-supplied top_k must reach retrieval")
}

func TestAnswer_RetrievalFailurePropagates(t *testing.T) {
	a := NewAnswerer(&fakeSearcher{err: errors.New("db down")}, &fakeQAGenerator{}, "phi4:14b", 8, nil)

	_, err := a.Answer(context.Background(), "anything", nil, nil)
	require.Error(t, err)
	assert.False(t, errs.IsSynthesis(err))
}
