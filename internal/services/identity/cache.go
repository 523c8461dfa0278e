package identity

import (
	"context"
	"fmt"
	"sync"
)

type resolutionCacheKey struct{}

// resolutionCache memoizes one request's resolution. It lives on that
// request's context only.
type resolutionCache struct {
	mu   sync.Mutex
	done bool
	auth *AuthContext
	err  error
}

// WithResolutionCache installs an empty per-request memo. Installing twice
// keeps the existing memo.
func WithResolutionCache(ctx context.Context) context.Context {
	if cacheFromContext(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, resolutionCacheKey{}, &resolutionCache{})
}

func cacheFromContext(ctx context.Context) *resolutionCache {
	c, _ := ctx.Value(resolutionCacheKey{}).(*resolutionCache)
	return c
}

// AuthContextFromContext returns the memoized result, if resolution already
// ran for this request.
func AuthContextFromContext(ctx context.Context) (*AuthContext, bool) {
	c := cacheFromContext(ctx)
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.done || c.auth == nil {
		return nil, false
	}
	return c.auth, true
}

// RequireAuthContext returns the memoized AuthContext of an authenticated
// caller. Anonymous or unresolved requests get ErrUnauthorized; a disabled
// account gets ErrAccountInactive.
func RequireAuthContext(ctx context.Context) (*AuthContext, error) {
	c := cacheFromContext(ctx)
	if c == nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrIdentityUnresolved)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if !c.done || !c.auth.IsAuthenticated() {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, ErrIdentityUnresolved)
	}
	return c.auth, nil
}

// memoize runs compute once per cache; later calls return the stored result.
func (c *resolutionCache) memoize(compute func() (*AuthContext, error)) (*AuthContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.done {
		c.auth, c.err = compute()
		c.done = true
	}
	return c.auth, c.err
}
