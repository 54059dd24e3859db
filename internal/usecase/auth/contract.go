package auth

import "context"

// UserStore verifies credentials and subject existence. The static
// config-backed implementation is a placeholder; a persistent store with
// hashed passwords can be swapped in without touching the token logic.
type UserStore interface {
	Verify(ctx context.Context, username, password string) bool
	Exists(ctx context.Context, username string) bool
}
