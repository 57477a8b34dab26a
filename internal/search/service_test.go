package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/photostack/internal/config"
	"github.com/your-org/photostack/internal/errs"
	"github.com/your-org/photostack/internal/models"
	"github.com/your-org/photostack/internal/storage"
)

type fakeStore struct {
	matches   []models.MatchResult
	lastLimit int
	lastVec   []float32
}

func (f *fakeStore) SearchByVector(ctx context.Context, embedding []float32, filter *storage.SearchFilter, limit int) ([]models.MatchResult, error) {
	f.lastVec = embedding
	f.lastLimit = limit
	return f.matches, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func (f *fakeEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	return f.vec, f.err
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{DefaultTopK: 12, MaxTopK: 50, QATopK: 8}
}

func topKPtr(n int) *int { return &n }

func TestSearchText_EmptyQueryRejected(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeEmbedder{}, testSearchConfig(), nil)

	_, err := svc.SearchText(context.Background(), "   ", nil, nil)
	assert.True(t, errs.IsValidation(err))
}

func TestSearchText_TopKResolution(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, &fakeEmbedder{vec: []float32{1, 0}}, testSearchConfig(), nil)

	_, err := svc.SearchText(context.Background(), "receipt", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, store.lastLimit, "unset means the default")

	_, err = svc.SearchText(context.Background(), "receipt", nil, topKPtr(1000))
	require.NoError(t, err)
	assert.Equal(t, 50, store.lastLimit, "above the max clamps")

	_, err = svc.SearchText(context.Background(), "receipt", nil, topKPtr(5))
	require.NoError(t, err)
	assert.Equal(t, 5, store.lastLimit)

	_, err = svc.SearchText(context.Background(), "receipt", nil, topKPtr(0))
	assert.True(t, errs.IsValidation(err), "explicit zero is invalid")

	_, err = svc.SearchText(context.Background(), "receipt", nil, topKPtr(-1))
	assert.True(t, errs.IsValidation(err))
}

func TestSearchText_EmptyCorpus(t *testing.T) {
	store := &fakeStore{matches: []models.MatchResult{}}
	svc := NewService(store, &fakeEmbedder{vec: []float32{1, 0}}, testSearchConfig(), nil)

	matches, err := svc.SearchText(context.Background(), "anything", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchText_InvalidFilterRejectedBeforeEmbedding(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{1, 0}}
	svc := NewService(&fakeStore{}, emb, testSearchConfig(), nil)

	bad := -1
	_, err := svc.SearchText(context.Background(), "receipt", &models.FilterSpec{Days: &bad}, nil)
	assert.True(t, errs.IsValidation(err))
}

func TestSearchImage_EmptyPayloadRejected(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeEmbedder{}, testSearchConfig(), nil)

	_, err := svc.SearchImage(context.Background(), nil, nil)
	assert.True(t, errs.IsValidation(err))
}

func TestSearchImage_UsesImageEmbedding(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, &fakeEmbedder{vec: []float32{0, 1}}, testSearchConfig(), nil)

	_, err := svc.SearchImage(context.Background(), []byte("jpeg bytes"), topKPtr(3))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, store.lastVec)
	assert.Equal(t, 3, store.lastLimit)
}
