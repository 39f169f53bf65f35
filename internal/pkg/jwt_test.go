package pkg

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", 0)
	assert.Equal(t, DefaultTokenTTL, issuer.TTL())

	tok, err := issuer.Generate(42, "donor")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.ID)

	claims, err := issuer.Parse(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "donor", claims.Role)
	assert.Equal(t, tok.ID, claims.ID)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenIssuer_UniqueIDs(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	a, err := issuer.Generate(1, "receiver")
	require.NoError(t, err)
	b, err := issuer.Generate(1, "receiver")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := issuer.Generate(1, "donor")
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(tok.Value)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	tok, err := NewTokenIssuer("one", time.Hour).Generate(1, "donor")
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", time.Hour).Parse(tok.Value)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenIssuer("secret", time.Hour).Parse(signed)
	assert.Error(t, err)

	_, err = NewTokenIssuer("secret", time.Hour).Parse("not-a-token")
	assert.ErrorIs(t, err, ErrTokenParseFailure)
}
