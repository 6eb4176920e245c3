// Package auth provides bearer-token acquisition for the sync client.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource obtains a fresh bearer token, e.g. by logging in against an
// identity provider.
type TokenSource func(ctx context.Context) (string, error)

// CachedTokenProvider caches tokens produced by a TokenSource. When the token
// is a JWT, the provider re-acquires it shortly before the exp claim; opaque
// tokens are cached until the process restarts.
type CachedTokenProvider struct {
	mu        sync.Mutex
	source    TokenSource
	leeway    time.Duration
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewCachedTokenProvider(source TokenSource) *CachedTokenProvider {
	return &CachedTokenProvider{
		source: source,
		leeway: 30 * time.Second,
		now:    time.Now,
	}
}

// BearerToken returns the cached token, refreshing it via the source when it
// is missing or about to expire.
func (p *CachedTokenProvider) BearerToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && (p.expiresAt.IsZero() || p.now().Add(p.leeway).Before(p.expiresAt)) {
		return p.token, nil
	}

	token, err := p.source(ctx)
	if err != nil {
		return "", err
	}

	p.token = token
	p.expiresAt = tokenExpiry(token)
	return token, nil
}

// tokenExpiry extracts the exp claim without verifying the signature; the
// client only needs it to schedule the refresh, validation is the server's
// job. Returns the zero time when the token is not a parsable JWT.
func tokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
