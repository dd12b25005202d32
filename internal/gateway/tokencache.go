package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/gotilapod/pix-gateway/internal/obs"
)

// DefaultTokenBuffer is subtracted from the provider-reported TTL so a
// cached token is never used close to its expiry mid-flight.
const DefaultTokenBuffer = 5 * time.Minute

// TokenFetcher performs the actual OAuth exchange and reports the token
// with its provider-declared lifetime.
type TokenFetcher func(ctx context.Context) (token string, ttl time.Duration, err error)

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// TokenCache holds one bearer token per provider for the lifetime of the
// process. Entries are replaced atomically; a reader never observes a
// half-written entry. Refreshes are single-flighted per provider.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]*tokenEntry

	// Now is injectable for tests.
	Now func() time.Time
	// Buffer is subtracted from reported TTLs. Defaults to DefaultTokenBuffer.
	Buffer time.Duration
}

type tokenEntry struct {
	mu    sync.Mutex
	value cachedToken
}

// NewTokenCache builds an empty cache with the default safety buffer.
func NewTokenCache() *TokenCache {
	return &TokenCache{
		entries: make(map[string]*tokenEntry),
		Now:     time.Now,
		Buffer:  DefaultTokenBuffer,
	}
}

// Get returns the cached token for the provider while it is still valid and
// otherwise refreshes it through fetch. Concurrent callers observing an
// expired entry trigger a single refresh.
func (c *TokenCache) Get(ctx context.Context, provider string, fetch TokenFetcher) (string, error) {
	entry := c.entryFor(provider)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	now := c.now()
	if entry.value.token != "" && now.Before(entry.value.expiresAt) {
		return entry.value.token, nil
	}

	token, ttl, err := fetch(ctx)
	if obs.TokenRefreshTotal != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		obs.TokenRefreshTotal.WithLabelValues(provider, outcome).Inc()
	}
	if err != nil {
		return "", err
	}
	buffer := c.Buffer
	if buffer <= 0 {
		buffer = DefaultTokenBuffer
	}
	lifetime := ttl - buffer
	if lifetime <= 0 {
		// Token shorter than the buffer: keep it for half its life rather
		// than re-authenticating on every call.
		lifetime = ttl / 2
	}
	entry.value = cachedToken{token: token, expiresAt: c.now().Add(lifetime)}
	return token, nil
}

// Invalidate drops the cached token for a provider, forcing the next Get to
// re-authenticate. Used after a 401 on a supposedly valid token.
func (c *TokenCache) Invalidate(provider string) {
	entry := c.entryFor(provider)
	entry.mu.Lock()
	entry.value = cachedToken{}
	entry.mu.Unlock()
}

func (c *TokenCache) entryFor(provider string) *tokenEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]*tokenEntry)
	}
	entry, ok := c.entries[provider]
	if !ok {
		entry = &tokenEntry{}
		c.entries[provider] = entry
	}
	return entry
}

func (c *TokenCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
