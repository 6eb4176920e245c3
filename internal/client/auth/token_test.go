package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	s, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func TestBearerToken_CachesOpaqueTokens(t *testing.T) {
	calls := 0
	p := NewCachedTokenProvider(func(ctx context.Context) (string, error) {
		calls++
		return "opaque-token", nil
	})

	for i := 0; i < 3; i++ {
		tok, err := p.BearerToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "opaque-token", tok)
	}
	assert.Equal(t, 1, calls)
}

func TestBearerToken_RefreshesExpiredJWT(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	calls := 0
	p := NewCachedTokenProvider(func(ctx context.Context) (string, error) {
		calls++
		return signedToken(t, now.Add(time.Hour)), nil
	})
	p.now = func() time.Time { return now }

	_, err := p.BearerToken(context.Background())
	require.NoError(t, err)
	_, err = p.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "token still valid, no refresh expected")

	// move close to expiry, within the leeway window
	now = now.Add(time.Hour - 10*time.Second)
	_, err = p.BearerToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "token near expiry must be re-acquired")
}

func TestBearerToken_PropagatesSourceError(t *testing.T) {
	boom := errors.New("login failed")
	p := NewCachedTokenProvider(func(ctx context.Context) (string, error) {
		return "", boom
	})

	_, err := p.BearerToken(context.Background())
	assert.ErrorIs(t, err, boom)
}
