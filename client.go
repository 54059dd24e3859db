package pixdex

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/halcyon-cloud/pixdex/internal/db"
	dbRedis "github.com/halcyon-cloud/pixdex/internal/db/redis"
	"github.com/halcyon-cloud/pixdex/internal/domain"
	"github.com/halcyon-cloud/pixdex/internal/repository/embcache"
	searchrepo "github.com/halcyon-cloud/pixdex/internal/repository/search"
	"github.com/halcyon-cloud/pixdex/internal/transport/clip"
	healthuc "github.com/halcyon-cloud/pixdex/internal/usecase/health"
	searchuc "github.com/halcyon-cloud/pixdex/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCollection       = "image-search-dataset"
	defaultModel            = "clip-vit-base-patch32"
	defaultDimensions       = 512
)

// Match is one ranked search result.
type Match = domain.Match

// EmbeddingResult is an embedding vector with provider token usage.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder is a multimodal embedding provider. Text and image embeddings
// must share one vector space for cross-modal search to make sense.
type Embedder interface {
	EmbedText(ctx context.Context, text string) (EmbeddingResult, error)
	EmbedImage(ctx context.Context, img image.Image) (EmbeddingResult, error)
}

// Internal interfaces for test substitution.
type searchUseCase interface {
	SearchText(ctx context.Context, query string, topK int) ([]domain.Match, error)
	SearchImage(ctx context.Context, data []byte, topK int) ([]domain.Match, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the pixdex SDK entry point.
type Client struct {
	store     db.Store
	searchSvc searchUseCase
	healthSvc healthUseCase
}

// New creates a pixdex Client and connects to the vector index.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		collection:    defaultCollection,
		embModel:      defaultModel,
		embDimensions: defaultDimensions,
	}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("pixdex: index address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Username: cfg.username,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("pixdex: create redis store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("pixdex: index not ready: %w", err)
	}

	return wireClient(store, cfg), nil
}

func wireClient(store db.Store, cfg *clientConfig) *Client {
	text, img, checker := buildEmbedders(store, cfg)

	searchRepo := searchrepo.New(store)
	searchSvc := searchuc.New(searchRepo, text, img, cfg.collection)
	if cfg.defaultTopK > 0 || cfg.maxTopK > 0 {
		searchSvc = searchSvc.WithLimits(cfg.defaultTopK, cfg.maxTopK)
	}

	return &Client{
		store:     store,
		searchSvc: searchSvc,
		healthSvc: healthuc.New(store, checker),
	}
}

// buildEmbedders assembles the embedder chain: CLIP or custom, then cache.
func buildEmbedders(
	store db.Store, cfg *clientConfig,
) (domain.TextEmbedder, domain.ImageEmbedder, domain.HealthChecker) {
	var (
		text    domain.TextEmbedder
		img     domain.ImageEmbedder
		checker domain.HealthChecker
	)

	switch {
	case cfg.embedder != nil:
		a := &embedderAdapter{inner: cfg.embedder}
		text, img = a, a
	case cfg.embBaseURL != "":
		base := clip.NewEmbedder(&clip.Config{
			APIKey:     cfg.embAPIKey,
			BaseURL:    cfg.embBaseURL,
			Model:      cfg.embModel,
			Dimensions: cfg.embDimensions,
			Logger:     zap.NewNop(),
		})
		text, img, checker = base, base, base
	default:
		noop := &noopEmbedder{}
		text, img = noop, noop
	}

	if cfg.cacheTTL > 0 {
		cached := embcache.New(text, img, store, cfg.cacheTTL, nil, zap.NewNop())
		text, img = cached, cached
	}

	return text, img, checker
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks index connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// SearchText embeds a text query and returns the nearest stored images.
// topK = 0 means the configured default.
func (c *Client) SearchText(ctx context.Context, query string, topK int) ([]Match, error) {
	matches, err := c.searchSvc.SearchText(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("search text: %w", err)
	}
	return matches, nil
}

// SearchImage embeds an encoded image (PNG, JPEG, GIF, BMP, TIFF, WebP) and
// returns the nearest stored images. topK = 0 means the configured default.
func (c *Client) SearchImage(ctx context.Context, data []byte, topK int) ([]Match, error) {
	matches, err := c.searchSvc.SearchImage(ctx, data, topK)
	if err != nil {
		return nil, fmt.Errorf("search image: %w", err)
	}
	return matches, nil
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded"
	Checks map[string]string // component → "ok"/"error"
}

// Health checks the health of all system components.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// embedderAdapter wraps a public Embedder to satisfy the internal interfaces.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.EmbedText(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) EmbedImage(ctx context.Context, img image.Image) (domain.EmbeddingResult, error) {
	r, err := a.inner.EmbedImage(ctx, img)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed image: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder returns an error on every call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) EmbedText(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"pixdex: embedder not configured (use WithEmbeddingServer or WithEmbedder)",
	)
}

func (noopEmbedder) EmbedImage(_ context.Context, _ image.Image) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"pixdex: embedder not configured (use WithEmbeddingServer or WithEmbedder)",
	)
}
