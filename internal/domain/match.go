package domain

// KeyPrefix namespaces all pixdex keys and indexes in the vector store.
const KeyPrefix = "pixdex:"

// DefaultTopK is the number of neighbors requested when the caller does not specify one.
const DefaultTopK = 10

// Match is a single nearest-neighbor hit from the image index.
// Score is a similarity (higher = more similar); its range depends on the
// distance metric of the index. Order between matches is whatever the store
// returned — it is never re-sorted locally.
type Match struct {
	ID    string
	Score float64
	URL   string
}
