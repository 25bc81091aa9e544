package auth

import (
	"errors"
	"time"
)

// Issuer mints access tokens. Production tokens come from the user service;
// this exists for local tooling and tests that need tokens the Verifier accepts.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("signing secret is required")
	}
	return &Issuer{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for id that expires after ttl.
func (i *Issuer) Issue(id Identity, ttl time.Duration) (string, time.Time, error) {
	if id.Subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	if !id.Role.Valid() {
		return "", time.Time{}, errors.New("unknown role")
	}
	now := i.now()
	exp := now.Add(ttl)
	expUnix := exp.Unix()
	signed, err := SignHS256(Claims{
		Subject:   id.Subject,
		Role:      id.Role,
		IssuedAt:  now.Unix(),
		ExpiresAt: &expUnix,
	}, i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
