package auth

import (
	"context"
	"crypto/subtle"
)

// StaticUserStore holds an immutable in-process credential set.
type StaticUserStore struct {
	passwords map[string]string
}

var _ UserStore = (*StaticUserStore)(nil)

// NewStaticUserStore creates a store from username → password pairs.
func NewStaticUserStore(credentials map[string]string) *StaticUserStore {
	passwords := make(map[string]string, len(credentials))
	for u, p := range credentials {
		passwords[u] = p
	}
	return &StaticUserStore{passwords: passwords}
}

// Verify reports whether the username/password pair matches a stored credential.
// Comparison is constant-time over the password.
func (s *StaticUserStore) Verify(_ context.Context, username, password string) bool {
	stored, ok := s.passwords[username]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// Exists reports whether the username is part of the credential set.
func (s *StaticUserStore) Exists(_ context.Context, username string) bool {
	_, ok := s.passwords[username]
	return ok
}
