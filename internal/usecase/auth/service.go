package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/halcyon-cloud/pixdex/internal/domain"
)

// Authenticator issues and validates stateless HS256-signed session tokens.
// Tokens are self-expiring; there is no server-side revocation, the TTL bounds
// the blast radius of a leak. Safe for concurrent use.
type Authenticator struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New creates an Authenticator with the given signing secret and token TTL.
func New(users UserStore, secret []byte, ttl time.Duration) *Authenticator {
	return &Authenticator{
		users:  users,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the time source (tests).
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	return a
}

// Login exchanges a username/password pair for a signed token.
// Unknown user and wrong password fail identically.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	if !a.users.Verify(ctx, username, password) {
		return "", fmt.Errorf("login: %w", domain.ErrAuthentication)
	}

	issued := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		ExpiresAt: jwt.NewNumericDate(issued.Add(a.ttl)),
		IssuedAt:  jwt.NewNumericDate(issued),
		ID:        uuid.NewString(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Validate checks signature, expiry, and subject existence, returning the
// subject username. All failure modes map to the same ErrAuthentication so the
// caller cannot tell which check failed.
func (a *Authenticator) Validate(ctx context.Context, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("validate token: %w", domain.ErrAuthentication)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" || !a.users.Exists(ctx, claims.Subject) {
		return "", fmt.Errorf("validate token: %w", domain.ErrAuthentication)
	}

	return claims.Subject, nil
}
