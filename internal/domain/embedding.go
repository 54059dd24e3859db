package domain

import (
	"context"
	"image"
)

// TextEmbedder vectorizes a text query into the shared embedding space.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (EmbeddingResult, error)
}

// ImageEmbedder vectorizes a decoded RGB image into the shared embedding space.
// Text and image vectors must come from the same model so cross-modal
// similarity is meaningful.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, img image.Image) (EmbeddingResult, error)
}

// HealthChecker verifies embedding provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}
