package search

import (
	"context"
	"image"

	"github.com/halcyon-cloud/pixdex/internal/domain"
)

// Repository is the storage contract for nearest-neighbor queries.
type Repository interface {
	QueryKNN(ctx context.Context, collection string, vector []float32, topK int) ([]domain.Match, error)
}

// TextEmbedder vectorizes query text.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ImageEmbedder vectorizes a normalized RGB image.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, img image.Image) (domain.EmbeddingResult, error)
}
