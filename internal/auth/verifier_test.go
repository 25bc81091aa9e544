package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agura-market/agura_market/internal/apperr"
)

const testSecret = "test-secret"

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestPair(t *testing.T, now time.Time) (*Issuer, *Verifier) {
	t.Helper()
	iss, err := NewIssuer(testSecret)
	require.NoError(t, err)
	iss.now = func() time.Time { return now }
	v, err := NewVerifier(testSecret, fixedClock{t: now})
	require.NoError(t, err)
	return iss, v
}

func TestVerifyRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	iss, v := newTestPair(t, now)

	for _, want := range []Identity{
		{Subject: "64b7f0c2e1", Role: RoleUser},
		{Subject: "admin-1", Role: RoleAdmin},
	} {
		token, exp, err := iss.Issue(want, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), exp)

		got, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestVerifyMissingToken(t *testing.T) {
	_, v := newTestPair(t, time.Now())
	_, err := v.Verify("  ")
	require.ErrorIs(t, err, ErrMissingCredential)
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestVerifyExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	iss, _ := newTestPair(t, now)
	token, _, err := iss.Issue(Identity{Subject: "u1", Role: RoleUser}, time.Minute)
	require.NoError(t, err)

	later, err := NewVerifier(testSecret, fixedClock{t: now.Add(time.Minute)})
	require.NoError(t, err)
	_, err = later.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
	require.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestVerifyRejectsTamperedTokens(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	iss, v := newTestPair(t, now)
	token, _, err := iss.Issue(Identity{Subject: "u1", Role: RoleUser}, time.Hour)
	require.NoError(t, err)
	parts := strings.Split(token, ".")

	exp := now.Add(time.Hour).Unix()
	escalated, err := SignHS256(Claims{Subject: "u1", Role: RoleAdmin, ExpiresAt: &exp}, []byte("other-secret"))
	require.NoError(t, err)
	escalatedParts := strings.Split(escalated, ".")

	noneHeader := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	cases := map[string]string{
		"payload swapped": parts[0] + "." + escalatedParts[1] + "." + parts[2],
		"wrong secret":    escalated,
		"alg none":        noneHeader + "." + parts[1] + ".",
		"truncated":       parts[0] + "." + parts[1],
		"garbage":         "not-a-token",
		"bad signature":   parts[0] + "." + parts[1] + ".%%%",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperr.ErrUnauthenticated), "got %v", err)
			assert.False(t, errors.Is(err, apperr.ErrForbidden))
		})
	}
}

func TestVerifyClaimRules(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	_, v := newTestPair(t, now)
	exp := now.Add(time.Hour).Unix()

	noExp, err := SignHS256(Claims{Subject: "u1", Role: RoleUser}, []byte(testSecret))
	require.NoError(t, err)
	_, err = v.Verify(noExp)
	require.ErrorIs(t, err, ErrInvalidToken)

	badRole, err := SignHS256(Claims{Subject: "u1", Role: "root", ExpiresAt: &exp}, []byte(testSecret))
	require.NoError(t, err)
	_, err = v.Verify(badRole)
	require.ErrorIs(t, err, ErrInvalidToken)

	noRole, err := SignHS256(Claims{Subject: "u1", ExpiresAt: &exp}, []byte(testSecret))
	require.NoError(t, err)
	id, err := v.Verify(noRole)
	require.NoError(t, err)
	assert.Equal(t, RoleUser, id.Role)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer   abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}

func TestRequireRole(t *testing.T) {
	require.NoError(t, RequireRole(Identity{Subject: "a", Role: RoleAdmin}, RoleAdmin))
	require.ErrorIs(t, RequireRole(Identity{Subject: "u", Role: RoleUser}, RoleAdmin), apperr.ErrForbidden)
	require.ErrorIs(t, RequireRole(Identity{}, RoleAdmin), apperr.ErrPreconditionFailed)
}
