package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/halcyon-cloud/pixdex/internal/domain"
)

// Service runs the query pipeline: validate → embed → KNN → matches.
// Each call is a bounded synchronous pipeline with no shared mutable state,
// so a single Service is safe for concurrent requests.
type Service struct {
	repo        Repository
	text        TextEmbedder
	image       ImageEmbedder
	collection  string
	defaultTopK int
	maxTopK     int
}

// New creates a search service scoped to one image collection.
func New(repo Repository, text TextEmbedder, image ImageEmbedder, collection string) *Service {
	return &Service{
		repo:        repo,
		text:        text,
		image:       image,
		collection:  collection,
		defaultTopK: domain.DefaultTopK,
		maxTopK:     100,
	}
}

// WithLimits overrides the default and maximum top-k.
func (s *Service) WithLimits(defaultTopK, maxTopK int) *Service {
	if defaultTopK > 0 {
		s.defaultTopK = defaultTopK
	}
	if maxTopK > 0 {
		s.maxTopK = maxTopK
	}
	return s
}

// SearchText embeds a text query and returns the nearest stored images in
// store order. topK = 0 means "use the default".
func (s *Service) SearchText(ctx context.Context, query string, topK int) ([]domain.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query text is required: %w", domain.ErrValidation)
	}

	k, err := s.resolveTopK(topK)
	if err != nil {
		return nil, err
	}

	emb, err := s.text.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.repo.QueryKNN(ctx, s.collection, emb.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("query image index: %w", err)
	}
	return matches, nil
}

// SearchImage decodes and normalizes an uploaded image, embeds it, and returns
// the nearest stored images. Decode and embedding failures are processing
// errors, not validation errors: the upload reached the pipeline, it is the
// pipeline that failed on it.
func (s *Service) SearchImage(ctx context.Context, data []byte, topK int) ([]domain.Match, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image file is required: %w", domain.ErrValidation)
	}

	k, err := s.resolveTopK(topK)
	if err != nil {
		return nil, err
	}

	img, err := DecodeRGB(data)
	if err != nil {
		return nil, fmt.Errorf("process upload: %v: %w", err, domain.ErrProcessing)
	}

	emb, err := s.image.EmbedImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("embed image: %w", err)
	}

	matches, err := s.repo.QueryKNN(ctx, s.collection, emb.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("query image index: %w", err)
	}
	return matches, nil
}

func (s *Service) resolveTopK(topK int) (int, error) {
	switch {
	case topK == 0:
		return s.defaultTopK, nil
	case topK < 0:
		return 0, fmt.Errorf("top_k must be positive: %w", domain.ErrValidation)
	case topK > s.maxTopK:
		return 0, fmt.Errorf("top_k must not exceed %d: %w", s.maxTopK, domain.ErrValidation)
	}
	return topK, nil
}
