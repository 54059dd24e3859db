package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/halcyon-cloud/pixdex/internal/domain"
)

func newTestAuthenticator() *Authenticator {
	store := NewStaticUserStore(map[string]string{
		"admin": "password123",
		"demo":  "hunter2",
	})
	return New(store, []byte("test-secret"), 30*time.Minute)
}

func TestLoginValidate_RoundTrip(t *testing.T) {
	a := newTestAuthenticator()
	ctx := context.Background()

	for user, pass := range map[string]string{"admin": "password123", "demo": "hunter2"} {
		token, err := a.Login(ctx, user, pass)
		if err != nil {
			t.Fatalf("login %s: unexpected error: %v", user, err)
		}
		if token == "" {
			t.Fatalf("login %s: empty token", user)
		}

		got, err := a.Validate(ctx, token)
		if err != nil {
			t.Fatalf("validate %s: unexpected error: %v", user, err)
		}
		if got != user {
			t.Errorf("validate recovered %q, want %q", got, user)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	a := newTestAuthenticator()
	ctx := context.Background()

	cases := []struct{ user, pass string }{
		{"admin", "wrong"},
		{"nobody", "password123"},
		{"", ""},
	}
	for _, tc := range cases {
		token, err := a.Login(ctx, tc.user, tc.pass)
		if !errors.Is(err, domain.ErrAuthentication) {
			t.Errorf("login(%q, %q): expected ErrAuthentication, got %v", tc.user, tc.pass, err)
		}
		if token != "" {
			t.Errorf("login(%q, %q): produced a token on failure", tc.user, tc.pass)
		}
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	a := newTestAuthenticator()
	ctx := context.Background()

	issued := time.Now()
	a.WithClock(func() time.Time { return issued })

	token, err := a.Login(ctx, "admin", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	// Advance past the TTL; signature is still valid.
	a.WithClock(func() time.Time { return issued.Add(31 * time.Minute) })

	if _, err := a.Validate(ctx, token); !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication for expired token, got %v", err)
	}
}

func TestValidate_TamperedToken(t *testing.T) {
	a := newTestAuthenticator()
	ctx := context.Background()

	token, err := a.Login(ctx, "admin", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]

	if _, err := a.Validate(ctx, tampered); !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication for tampered token, got %v", err)
	}
}

func TestValidate_WrongSecret(t *testing.T) {
	a := newTestAuthenticator()
	ctx := context.Background()

	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := a.Validate(ctx, forged); !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication for foreign signature, got %v", err)
	}
}

func TestValidate_UnknownSubject(t *testing.T) {
	a := newTestAuthenticator()
	ctx := context.Background()

	// Correctly signed token whose subject is not in the credential set.
	claims := jwt.RegisteredClaims{
		Subject:   "ghost",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := a.Validate(ctx, token); !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication for unknown subject, got %v", err)
	}
}

func TestValidate_Garbage(t *testing.T) {
	a := newTestAuthenticator()
	if _, err := a.Validate(context.Background(), "not-a-jwt"); !errors.Is(err, domain.ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got %v", err)
	}
}

func TestStaticUserStore(t *testing.T) {
	s := NewStaticUserStore(map[string]string{"admin": "password123"})
	ctx := context.Background()

	if !s.Verify(ctx, "admin", "password123") {
		t.Error("expected matching credentials to verify")
	}
	if s.Verify(ctx, "admin", "password124") {
		t.Error("expected mismatched password to fail")
	}
	if s.Verify(ctx, "other", "password123") {
		t.Error("expected unknown user to fail")
	}
	if !s.Exists(ctx, "admin") || s.Exists(ctx, "other") {
		t.Error("Exists misreported membership")
	}
}
