package pixdex

import "time"

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs    []string
	username string
	password string

	collection  string
	defaultTopK int
	maxTopK     int

	embBaseURL    string
	embAPIKey     string
	embModel      string
	embDimensions int
	embedder      Embedder

	cacheTTL time.Duration
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithUsername sets the Redis ACL username.
func WithUsername(username string) Option {
	return func(c *clientConfig) {
		c.username = username
	}
}

// WithCollection sets the image collection to query.
// Default: "image-search-dataset".
func WithCollection(name string) Option {
	return func(c *clientConfig) {
		c.collection = name
	}
}

// WithTopKLimits sets the default and maximum result count.
// Defaults: 10 and 100.
func WithTopKLimits(defaultTopK, maxTopK int) Option {
	return func(c *clientConfig) {
		c.defaultTopK = defaultTopK
		c.maxTopK = maxTopK
	}
}

// WithEmbeddingServer points the client at an OpenAI-compatible CLIP
// embedding server. Required for searches unless WithEmbedder is used.
func WithEmbeddingServer(baseURL, apiKey string) Option {
	return func(c *clientConfig) {
		c.embBaseURL = baseURL
		c.embAPIKey = apiKey
	}
}

// WithEmbeddingModel overrides the embedding model and vector dimensions.
// Defaults: "clip-vit-base-patch32", 512.
func WithEmbeddingModel(model string, dimensions int) Option {
	return func(c *clientConfig) {
		c.embModel = model
		c.embDimensions = dimensions
	}
}

// WithEmbedder sets a custom multimodal embedding provider instead of the
// built-in CLIP server client.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithEmbeddingCache caches query embeddings in the index store with the
// given TTL. Pass 0 to disable (default).
func WithEmbeddingCache(ttl time.Duration) Option {
	return func(c *clientConfig) {
		c.cacheTTL = ttl
	}
}
