package providers

import (
	"sync"
	"time"
)

// tokenRefreshBuffer is subtracted from every TTL so tokens are renewed
// before the server rejects them
const tokenRefreshBuffer = 5 * time.Second

// TokenCache holds one access token in memory for the life of the process.
// Tokens are never written to disk.
type TokenCache struct {
	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewTokenCache creates a new empty token cache
func NewTokenCache() *TokenCache {
	return &TokenCache{now: time.Now}
}

// Get returns the cached token if one is set and has not expired
func (c *TokenCache) Get() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

// Set stores a token valid for ttl, minus the refresh buffer
func (c *TokenCache) Set(token string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl > tokenRefreshBuffer {
		ttl -= tokenRefreshBuffer
	}
	c.token = token
	c.expiresAt = c.now().Add(ttl)
}

// Clear removes the cached token
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	c.expiresAt = time.Time{}
}

// TTL returns the remaining lifetime, 0 when expired or unset
func (c *TokenCache) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token == "" {
		return 0
	}
	if remaining := c.expiresAt.Sub(c.now()); remaining > 0 {
		return remaining
	}
	return 0
}
