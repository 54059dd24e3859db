package health

import "context"

// IndexPinger checks vector index availability.
type IndexPinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding server availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
