// Package clip talks to a CLIP-style multimodal embedding server exposing the
// OpenAI-compatible embeddings API (e.g. an Infinity deployment). Text queries
// go through as plain inputs; images are shipped as base64 PNG data URIs. Both
// modalities hit the same model, so the returned vectors share one geometric
// space. Tokenization and pixel preprocessing live server-side next to the
// model weights, which keeps preprocessing pinned to what the model was
// trained with.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/halcyon-cloud/pixdex/internal/domain"
	"github.com/halcyon-cloud/pixdex/internal/metrics"
)

// Embedder is a multimodal embedding provider over the OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

var (
	_ domain.TextEmbedder  = (*Embedder)(nil)
	_ domain.ImageEmbedder = (*Embedder)(nil)
	_ domain.HealthChecker = (*Embedder)(nil)
)

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// NewEmbedder creates an embedding client for a CLIP-compatible server.
func NewEmbedder(cfg *Config) *Embedder {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     cfg.Logger,
	}
}

// EmbedText implements domain.TextEmbedder.
func (e *Embedder) EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.EmbeddingResult{}, fmt.Errorf("text is required: %w", domain.ErrValidation)
	}
	return e.embed(ctx, "text", text)
}

// EmbedImage implements domain.ImageEmbedder. The image is re-encoded as PNG
// and sent as a data URI; the caller keeps ownership of the image.
func (e *Embedder) EmbedImage(ctx context.Context, img image.Image) (domain.EmbeddingResult, error) {
	if img == nil || img.Bounds().Empty() {
		return domain.EmbeddingResult{}, fmt.Errorf("image is required: %w", domain.ErrValidation)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("encode image: %v: %w", err, domain.ErrProcessing)
	}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	return e.embed(ctx, "image", uri)
}

func (e *Embedder) embed(ctx context.Context, modality, input string) (domain.EmbeddingResult, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{input},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	start := time.Now()

	resp, err := e.client.CreateEmbeddings(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(modality, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(modality, string(e.model), "api_error").Inc()
		return domain.EmbeddingResult{}, parseAPIError(err)
	}

	if len(resp.Data) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(modality, string(e.model), "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(modality, string(e.model), "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrProcessing)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(modality, string(e.model), "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(modality, string(e.model)).Observe(duration.Seconds())

	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrProcessing for 500 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrProcessing

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("embedding API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("embedding request failed: %w", wrap)
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
