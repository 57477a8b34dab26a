package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/your-org/photostack/internal/observability"
)

// OCRResult is the text extraction output for one image.
type OCRResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// OCRClient calls the external OCR service over HTTP.
type OCRClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOCRClient(baseURL string, timeout time.Duration) *OCRClient {
	if timeout == 0 {
		timeout = time.Minute
	}
	return &OCRClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Extract runs OCR on image bytes. Callers treat any error, including
// timeout, as a non-fatal stage failure: an image with no extractable text is
// still a valid record.
func (c *OCRClient) Extract(ctx context.Context, filename string, image []byte) (*OCRResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &body)
	if err != nil {
		return nil, fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call ocr service: %w", err)
	}
	defer resp.Body.Close()
	observability.OracleDuration.WithLabelValues("ocr").Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ocr service status %d: %s", resp.StatusCode, string(data))
	}

	var result OCRResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode ocr response: %w", err)
	}
	return &result, nil
}
