package ledger

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"reconciliation-dashboard/pkg/errors"
)

// TokenProvider supplies the access token used for spreadsheet calls
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// TokenFetcher retrieves a fresh token from the connected account
type TokenFetcher func(ctx context.Context) (*oauth2.Token, error)

// TokenCache holds the last fetched token. Implementations must be safe for
// concurrent use.
type TokenCache interface {
	Load() (*oauth2.Token, bool)
	Store(token *oauth2.Token)
}

// MemoryTokenCache is a TokenCache kept in process memory
type MemoryTokenCache struct {
	mu    sync.Mutex
	token *oauth2.Token
}

func (c *MemoryTokenCache) Load() (*oauth2.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, c.token != nil
}

func (c *MemoryTokenCache) Store(token *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// CachingTokenProvider reuses a cached token until it expires. Tokens
// without an expiry are never reused.
type CachingTokenProvider struct {
	fetch TokenFetcher
	cache TokenCache
	now   func() time.Time
}

// NewCachingTokenProvider wraps fetch with cache. A nil cache gets a fresh
// MemoryTokenCache.
func NewCachingTokenProvider(fetch TokenFetcher, cache TokenCache) *CachingTokenProvider {
	if cache == nil {
		cache = &MemoryTokenCache{}
	}
	return &CachingTokenProvider{
		fetch: fetch,
		cache: cache,
		now:   time.Now,
	}
}

func (p *CachingTokenProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	if token, ok := p.cache.Load(); ok && !token.Expiry.IsZero() && token.Expiry.After(p.now()) {
		return token, nil
	}

	if p.fetch == nil {
		return nil, notConnected(nil)
	}

	token, err := p.fetch(ctx)
	if err != nil {
		return nil, notConnected(err)
	}
	if token == nil || token.AccessToken == "" {
		return nil, notConnected(nil)
	}

	p.cache.Store(token)
	return token, nil
}

// StaticTokenProvider always returns the same access token
type StaticTokenProvider string

func (s StaticTokenProvider) Token(_ context.Context) (*oauth2.Token, error) {
	if s == "" {
		return nil, notConnected(nil)
	}
	return &oauth2.Token{AccessToken: string(s), TokenType: "Bearer"}, nil
}

// FromTokenSource adapts an oauth2.TokenSource into a TokenFetcher
func FromTokenSource(src oauth2.TokenSource) TokenFetcher {
	return func(_ context.Context) (*oauth2.Token, error) {
		return src.Token()
	}
}

// tokenSource lets a TokenProvider back an authenticated HTTP client
type tokenSource struct {
	ctx      context.Context
	provider TokenProvider
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	return s.provider.Token(s.ctx)
}

func notConnected(err error) error {
	re := errors.NetworkError(errors.CodeUnauthorized, "google sheets", err)
	re.Message = "google sheet not connected"
	return re
}
