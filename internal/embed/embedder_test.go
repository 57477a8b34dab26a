package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/photostack/internal/config"
)

func l2(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 1.0, l2(v), 1e-6)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestFuse_SumsAndRenormalizes(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	fused := Fuse(a, b)
	assert.InDelta(t, 1.0, l2(fused), 1e-6)
	assert.InDelta(t, fused[0], fused[1], 1e-6)
	// Inputs untouched.
	assert.Equal(t, []float32{1, 0}, a)
}

func newTestService(t *testing.T, handler http.HandlerFunc, dim int) *Service {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewService(config.EmbedderConfig{BaseURL: ts.URL, Model: "ViT-L-14", Dim: dim})
}

func TestEmbedText_NormalizesResponse(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embed/text", r.URL.Path)
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{3, 4}})
	}, 2)

	vec, err := svc.EmbedText(context.Background(), "a receipt")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, l2(vec), 1e-6)
}

func TestEmbedText_DimensionMismatch(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 2, 3}})
	}, 2)

	_, err := svc.EmbedText(context.Background(), "query")
	assert.Error(t, err)
}

func TestEmbedImageAndText_FusesWhenTextPresent(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/embed/image":
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{1, 0}})
		case "/v1/embed/text":
			json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0, 1}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, 2)

	imgOnly, err := svc.EmbedImageAndText(context.Background(), []byte("img"), "")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, imgOnly[0], 1e-6)

	fused, err := svc.EmbedImageAndText(context.Background(), []byte("img"), "some ocr text")
	require.NoError(t, err)
	assert.InDelta(t, fused[0], fused[1], 1e-6)
	assert.InDelta(t, 1.0, l2(fused), 1e-6)
}

func TestEmbedText_ServerError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}, 2)

	_, err := svc.EmbedText(context.Background(), "query")
	assert.Error(t, err)
}
