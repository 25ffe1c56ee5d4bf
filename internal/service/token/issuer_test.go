package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/credguard/internal/domain"
)

func TestIssuer_RoundTrip(t *testing.T) {
	iss, err := NewIssuer(Config{SigningKey: "test-key", Issuer: "credguard", TTL: time.Minute})
	require.NoError(t, err)

	tok, err := iss.Issue(1001)
	require.NoError(t, err)

	id, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity(1001), id)
}

func TestIssuer_UniqueTokenIDs(t *testing.T) {
	iss, err := NewIssuer(Config{SigningKey: "k"})
	require.NoError(t, err)

	a, err := iss.Issue(1001)
	require.NoError(t, err)
	b, err := iss.Issue(1001)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestIssuer_RandomKeyPerInstance(t *testing.T) {
	a, err := NewIssuer(Config{})
	require.NoError(t, err)
	b, err := NewIssuer(Config{})
	require.NoError(t, err)

	tok, err := a.Issue(1002)
	require.NoError(t, err)

	_, err = b.Parse(tok)
	assert.Error(t, err)
}

func TestIssuer_Expired(t *testing.T) {
	iss, err := NewIssuer(Config{SigningKey: "k", TTL: time.Minute})
	require.NoError(t, err)

	tok, err := iss.Issue(1001)
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestIssuer_RejectsOtherAlgorithms(t *testing.T) {
	iss, err := NewIssuer(Config{SigningKey: "k"})
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1001"},
	})
	signed, err := tok.SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = iss.Parse(signed)
	assert.Error(t, err)
}
