package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/your-org/photostack/internal/config"
	"github.com/your-org/photostack/internal/observability"
)

// Service maps images and text into a shared CLIP embedding space by calling
// the external embedding server. One record always carries exactly one
// vector; how modalities are fused into it is this package's concern.
type Service struct {
	baseURL    string
	model      string
	dim        int
	httpClient *http.Client
}

func NewService(cfg config.EmbedderConfig) *Service {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = time.Minute
	}
	return &Service{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		dim:     cfg.Dim,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Dim returns the fixed embedding dimension.
func (s *Service) Dim() int { return s.dim }

type embedRequest struct {
	Model string `json:"model"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (s *Service) call(ctx context.Context, path string, req embedRequest) ([]float32, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call embedder: %w", err)
	}
	defer resp.Body.Close()
	observability.OracleDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedder status %d: %s", resp.StatusCode, string(data))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Embedding) != s.dim {
		return nil, fmt.Errorf("embedder returned %d dims, expected %d", len(result.Embedding), s.dim)
	}

	vec := result.Embedding
	Normalize(vec)
	return vec, nil
}

// EmbedText embeds a query or OCR string through the text pathway.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return s.call(ctx, "/v1/embed/text", embedRequest{Model: s.model, Text: text})
}

// EmbedImage embeds raw image bytes through the image pathway.
func (s *Service) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	return s.call(ctx, "/v1/embed/image", embedRequest{
		Model: s.model,
		Image: base64.StdEncoding.EncodeToString(image),
	})
}

// EmbedImageAndText produces the single unified vector stored per record.
// With empty text this is just the image vector; otherwise the two modality
// vectors are summed and renormalized.
func (s *Service) EmbedImageAndText(ctx context.Context, image []byte, text string) ([]float32, error) {
	imgVec, err := s.EmbedImage(ctx, image)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return imgVec, nil
	}

	txtVec, err := s.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	return Fuse(imgVec, txtVec), nil
}

// Fuse combines two unit vectors into one by summing and renormalizing.
func Fuse(a, b []float32) []float32 {
	combined := make([]float32, len(a))
	for i := range a {
		combined[i] = a[i] + b[i]
	}
	Normalize(combined)
	return combined
}

// Normalize performs L2 normalization in-place.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}
