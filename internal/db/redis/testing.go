package redis

import "github.com/redis/rueidis"

// NewStoreForTest wraps a (mock) rueidis client for unit tests.
func NewStoreForTest(c rueidis.Client) *Store {
	return &Store{client: c}
}
