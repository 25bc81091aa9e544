package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agura-market/agura_market/internal/apperr"
)

var (
	// ErrMissingCredential is returned when no bearer token was presented.
	ErrMissingCredential = fmt.Errorf("missing bearer token: %w", apperr.ErrUnauthenticated)

	// ErrInvalidToken covers malformed, tampered and expired tokens alike.
	ErrInvalidToken = fmt.Errorf("invalid token: %w", apperr.ErrUnauthenticated)
)

// Claims is the payload carried by access tokens.
type Claims struct {
	Subject   string `json:"sub"`
	Role      Role   `json:"role,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt *int64 `json:"exp"`
}

// Clock lets tests pin the verification time.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Verifier validates HS256 bearer tokens against a process-wide secret.
type Verifier struct {
	secret []byte
	clock  Clock
}

// NewVerifier builds a verifier. A nil clock uses wall time.
func NewVerifier(secret string, clock Clock) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("verification secret is required")
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Verifier{secret: []byte(secret), clock: clock}, nil
}

// Verify checks the token and returns the identity it encodes. Every failure
// is reported as ErrMissingCredential or ErrInvalidToken.
func (v *Verifier) Verify(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrMissingCredential
	}

	var claims Claims
	if err := ParseAndVerifyHS256(raw, v.secret, &claims); err != nil {
		return Identity{}, fmt.Errorf("%s: %w", err.Error(), ErrInvalidToken)
	}
	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("subject claim missing: %w", ErrInvalidToken)
	}
	if claims.ExpiresAt == nil {
		return Identity{}, fmt.Errorf("expiry claim missing: %w", ErrInvalidToken)
	}
	if !v.clock.Now().Before(time.Unix(*claims.ExpiresAt, 0)) {
		return Identity{}, fmt.Errorf("token expired: %w", ErrInvalidToken)
	}

	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return Identity{}, fmt.Errorf("unknown role %q: %w", role, ErrInvalidToken)
	}

	return Identity{Subject: claims.Subject, Role: role}, nil
}

// BearerToken extracts the credential from an Authorization header value.
// It returns an empty string when the header is absent or not a bearer scheme.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
