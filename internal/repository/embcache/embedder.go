package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/halcyon-cloud/pixdex/internal/db"
	"github.com/halcyon-cloud/pixdex/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedEmbedder caches embeddings in a key-value store. Embeddings are
// deterministic for a fixed model, which makes the cache transparent to
// callers. Cache failures degrade to a direct embedder call, never to a
// request failure.
type CachedEmbedder struct {
	text       domain.TextEmbedder
	image      domain.ImageEmbedder
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

var (
	_ domain.TextEmbedder  = (*CachedEmbedder)(nil)
	_ domain.ImageEmbedder = (*CachedEmbedder)(nil)
)

// New creates a caching decorator around a text and an image embedder
// (usually the same underlying client).
// cacheTotal is a counter vec with labels "modality" and "result" ("hit"/"miss").
func New(
	text domain.TextEmbedder,
	image domain.ImageEmbedder,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		text:       text,
		image:      image,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// EmbedText returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := textKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("text", "hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.incCache("text", "miss")

	result, err := c.text.EmbedText(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.putToCache(ctx, key, result.Embedding)
	return result, nil
}

// EmbedImage returns a cached embedding keyed by the normalized pixel data.
// Images not in the normalized NRGBA form bypass the cache.
func (c *CachedEmbedder) EmbedImage(ctx context.Context, img image.Image) (domain.EmbeddingResult, error) {
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		result, err := c.image.EmbedImage(ctx, img)
		if err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("embed image: %w", err)
		}
		return result, nil
	}

	key := imageKey(nrgba)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache("image", "hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.incCache("image", "miss")

	result, err := c.image.EmbedImage(ctx, img)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed image: %w", err)
	}

	c.putToCache(ctx, key, result.Embedding)
	return result, nil
}

func (c *CachedEmbedder) incCache(modality, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(modality, result).Inc()
	}
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("embedding cache read failed", zap.Error(err))
		}
		return nil, false
	}

	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("embedding cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := c.store.SetWithTTL(ctx, key, encodeVector(vec), c.ttl); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
}

func textKey(text string) string {
	h := sha256.Sum256([]byte("text\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func imageKey(img *image.NRGBA) string {
	h := sha256.New()
	b := img.Bounds()
	_ = binary.Write(h, binary.LittleEndian, int64(b.Dx()))
	_ = binary.Write(h, binary.LittleEndian, int64(b.Dy()))
	h.Write([]byte("image\x00"))
	h.Write(img.Pix)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector payload of %d bytes", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
