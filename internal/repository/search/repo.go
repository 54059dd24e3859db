package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/halcyon-cloud/pixdex/internal/db"
	"github.com/halcyon-cloud/pixdex/internal/domain"
	"github.com/halcyon-cloud/pixdex/internal/metrics"
)

// store is the consumer interface for KNN queries (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// urlField is the metadata field carrying the display URL of an indexed image.
const urlField = "url"

// Repo implements usecase/search.Repository over the external vector index.
// Every call is a fresh remote query: no caching, no retries.
type Repo struct {
	store store
}

// New creates a similarity search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// QueryKNN returns the topK nearest stored image vectors in the collection,
// in the order the store returned them. Zero matches is a successful empty
// result. Vector dimensionality is not checked locally; a mismatch surfaces
// as the store's own error wrapped in ErrUpstream.
func (r *Repo) QueryKNN(
	ctx context.Context, collection string, vector []float32, topK int,
) ([]domain.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive: %w", domain.ErrValidation)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is required: %w", domain.ErrValidation)
	}

	indexName := fmt.Sprintf("%s%s:idx", domain.KeyPrefix, collection)

	q := &db.KNNQuery{
		IndexName:    indexName,
		Vector:       vector,
		K:            topK,
		ReturnFields: []string{urlField, "__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		metrics.VectorQueriesTotal.WithLabelValues(collection, "error").Inc()
		return nil, fmt.Errorf("query %s: %v: %w", collection, err, domain.ErrUpstream)
	}
	metrics.VectorQueriesTotal.WithLabelValues(collection, "success").Inc()

	return matchesFromResult(sr, collection), nil
}

// matchesFromResult converts db.SearchResult into []domain.Match, preserving
// store order.
func matchesFromResult(sr *db.SearchResult, collection string) []domain.Match {
	if sr == nil || len(sr.Entries) == 0 {
		return []domain.Match{}
	}

	prefix := fmt.Sprintf("%s%s:", domain.KeyPrefix, collection)
	matches := make([]domain.Match, 0, len(sr.Entries))

	for _, entry := range sr.Entries {
		matches = append(matches, domain.Match{
			ID:    strings.TrimPrefix(entry.Key, prefix),
			Score: entry.Score,
			URL:   entry.Fields[urlField],
		})
	}

	return matches
}
