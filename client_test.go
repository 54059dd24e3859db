package pixdex

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/halcyon-cloud/pixdex/internal/domain"
	healthuc "github.com/halcyon-cloud/pixdex/internal/usecase/health"
)

func TestNew_NoAddress(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no address provided")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithRedis("localhost:6379", "secret")(cfg)
	if cfg.addrs[0] != "localhost:6379" {
		t.Errorf("addr = %q, want localhost:6379", cfg.addrs[0])
	}
	if cfg.password != "secret" {
		t.Errorf("password = %q, want secret", cfg.password)
	}

	WithCollection("holiday-photos")(cfg)
	if cfg.collection != "holiday-photos" {
		t.Errorf("collection = %q, want holiday-photos", cfg.collection)
	}

	WithTopKLimits(5, 50)(cfg)
	if cfg.defaultTopK != 5 || cfg.maxTopK != 50 {
		t.Errorf("topK limits = (%d, %d), want (5, 50)", cfg.defaultTopK, cfg.maxTopK)
	}

	WithEmbeddingServer("http://localhost:7997", "key")(cfg)
	if cfg.embBaseURL != "http://localhost:7997" {
		t.Errorf("embBaseURL = %q", cfg.embBaseURL)
	}

	WithEmbeddingModel("clip-vit-large-patch14", 768)(cfg)
	if cfg.embModel != "clip-vit-large-patch14" || cfg.embDimensions != 768 {
		t.Errorf("model = (%q, %d)", cfg.embModel, cfg.embDimensions)
	}

	WithEmbeddingCache(time.Hour)(cfg)
	if cfg.cacheTTL != time.Hour {
		t.Errorf("cacheTTL = %v, want 1h", cfg.cacheTTL)
	}
}

func TestNoopEmbedder(t *testing.T) {
	noop := &noopEmbedder{}
	if _, err := noop.EmbedText(context.Background(), "test"); err == nil {
		t.Fatal("expected error from noopEmbedder")
	}
	if _, err := noop.EmbedImage(context.Background(), image.NewNRGBA(image.Rect(0, 0, 1, 1))); err == nil {
		t.Fatal("expected error from noopEmbedder")
	}
}

func TestEmbedderAdapter(t *testing.T) {
	called := false
	mock := &mockEmbedder{
		textFn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			called = true
			return EmbeddingResult{
				Embedding:    []float32{1, 2, 3},
				PromptTokens: 5,
				TotalTokens:  10,
			}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	result, err := adapter.EmbedText(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("inner embedder was not called")
	}
	if len(result.Embedding) != 3 {
		t.Errorf("embedding len = %d, want 3", len(result.Embedding))
	}
	if result.TotalTokens != 10 {
		t.Errorf("total tokens = %d, want 10", result.TotalTokens)
	}
}

func TestEmbedderAdapter_Error(t *testing.T) {
	mock := &mockEmbedder{
		textFn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{}, errors.New("provider down")
		},
	}

	adapter := &embedderAdapter{inner: mock}
	if _, err := adapter.EmbedText(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from adapter")
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	c := &Client{store: nil}
	c.Close()
}

func TestClient_SearchText_Passthrough(t *testing.T) {
	want := []Match{{ID: "alpha", Score: 0.9, URL: "https://img.example/alpha.jpg"}}
	c := &Client{searchSvc: &mockSearch{matches: want}}

	got, err := c.SearchText(context.Background(), "sunset", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("matches = %+v, want %+v", got, want)
	}
}

func TestClient_SearchImage_ErrorWrapped(t *testing.T) {
	c := &Client{searchSvc: &mockSearch{err: domain.ErrProcessing}}

	_, err := c.SearchImage(context.Background(), []byte("x"), 10)
	if !errors.Is(err, ErrProcessing) {
		t.Fatalf("expected ErrProcessing, got %v", err)
	}
}

func TestClient_Health(t *testing.T) {
	c := &Client{healthSvc: &mockHealth{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"vector_index": healthuc.CheckError},
	}}}

	status := c.Health(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if status.Checks["vector_index"] != "error" {
		t.Errorf("checks = %v", status.Checks)
	}
}

type mockEmbedder struct {
	textFn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.textFn(ctx, text)
}

func (m *mockEmbedder) EmbedImage(_ context.Context, _ image.Image) (EmbeddingResult, error) {
	return EmbeddingResult{}, nil
}

type mockSearch struct {
	matches []Match
	err     error
}

func (m *mockSearch) SearchText(_ context.Context, _ string, _ int) ([]domain.Match, error) {
	return m.matches, m.err
}

func (m *mockSearch) SearchImage(_ context.Context, _ []byte, _ int) ([]domain.Match, error) {
	return m.matches, m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report {
	return m.report
}
