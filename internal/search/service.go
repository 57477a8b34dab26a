package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/your-org/photostack/internal/config"
	"github.com/your-org/photostack/internal/errs"
	"github.com/your-org/photostack/internal/models"
	"github.com/your-org/photostack/internal/observability"
	"github.com/your-org/photostack/internal/storage"
)

// VectorSearcher is the nearest-neighbor capability the service reads from.
type VectorSearcher interface {
	SearchByVector(ctx context.Context, embedding []float32, filter *storage.SearchFilter, limit int) ([]models.MatchResult, error)
}

// QueryEmbedder maps a query into the shared embedding space.
type QueryEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
}

// Service answers similarity queries over the stored corpus.
type Service struct {
	store    VectorSearcher
	embedder QueryEmbedder
	cfg      config.SearchConfig
	logger   *slog.Logger
}

func NewService(store VectorSearcher, embedder QueryEmbedder, cfg config.SearchConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, embedder: embedder, cfg: cfg, logger: logger}
}

// SearchText ranks stored images against a natural-language query, restricted
// by the optional filter. topK nil means the configured default.
func (s *Service) SearchText(ctx context.Context, query string, spec *models.FilterSpec, topK *int) ([]models.MatchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.Validation("query must not be empty")
	}
	limit, err := s.resolveTopK(topK)
	if err != nil {
		return nil, err
	}

	filter, err := CompileFilter(spec, time.Now())
	if err != nil {
		return nil, err
	}

	vec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.store.SearchByVector(ctx, vec, filter, limit)
	if err != nil {
		return nil, err
	}

	observability.SearchesTotal.WithLabelValues("text").Inc()
	s.logger.Debug("text search", "query", query, "matches", len(matches))
	return matches, nil
}

// SearchImage ranks stored images by visual similarity to example image
// bytes. Image search carries no filter; the example picture is the query.
func (s *Service) SearchImage(ctx context.Context, image []byte, topK *int) ([]models.MatchResult, error) {
	if len(image) == 0 {
		return nil, errs.Validation("image payload must not be empty")
	}
	limit, err := s.resolveTopK(topK)
	if err != nil {
		return nil, err
	}

	vec, err := s.embedder.EmbedImage(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("embed query image: %w", err)
	}

	matches, err := s.store.SearchByVector(ctx, vec, nil, limit)
	if err != nil {
		return nil, err
	}

	observability.SearchesTotal.WithLabelValues("image").Inc()
	return matches, nil
}

// resolveTopK maps an optional caller limit onto the configured bounds: nil
// means the default, an explicit non-positive value is rejected, anything
// above the maximum clamps to it.
func (s *Service) resolveTopK(topK *int) (int, error) {
	if topK == nil {
		return s.cfg.DefaultTopK, nil
	}
	if *topK <= 0 {
		return 0, errs.Validation("top_k must be positive, got %d", *topK)
	}
	if *topK > s.cfg.MaxTopK {
		return s.cfg.MaxTopK, nil
	}
	return *topK, nil
}
