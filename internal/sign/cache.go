// Package sign caches short-lived access tokens per collection and
// appends them to asset URLs for restricted downloads.
package sign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/stac"
)

// DefaultBuffer is how long before expiry a cached token stops being
// reused.
const DefaultBuffer = 5 * time.Minute

// cacheSize bounds the number of per-collection tokens kept around.
const cacheSize = 128

type entry struct {
	token  string
	expiry time.Time
}

// tokenResponse is the body of GET /token/{collection}.
type tokenResponse struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

// Cache fetches and reuses signing tokens. Refresh is always lazy: a
// token is only re-fetched by the next Token call after it enters the
// expiry buffer.
type Cache struct {
	baseURL string
	httpc   *http.Client
	buffer  time.Duration
	now     func() time.Time

	mu     sync.Mutex
	tokens *lru.Cache[string, entry]
}

// NewCache creates a token cache against the given signing API root,
// e.g. "https://planetarycomputer.microsoft.com/api/sas/v1/token".
func NewCache(baseURL string) *Cache {
	tokens, _ := lru.New[string, entry](cacheSize)
	return &Cache{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
		buffer:  DefaultBuffer,
		now:     time.Now,
		tokens:  tokens,
	}
}

// Token returns a valid token for the collection, fetching a new one
// when none is cached or the cached one expires within the buffer.
func (c *Cache) Token(ctx context.Context, collectionID string) (string, error) {
	c.mu.Lock()
	if e, ok := c.tokens.Get(collectionID); ok && e.expiry.Sub(c.now()) > c.buffer {
		c.mu.Unlock()
		return e.token, nil
	}
	c.mu.Unlock()

	e, err := c.fetch(ctx, collectionID)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.tokens.Add(collectionID, e)
	c.mu.Unlock()
	return e.token, nil
}

// SignURL appends the collection's token to a URL, choosing "&" or "?"
// depending on whether the URL already has a query component.
func (c *Cache) SignURL(ctx context.Context, rawURL, collectionID string) (string, error) {
	token, err := c.Token(ctx, collectionID)
	if err != nil {
		return "", err
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + token, nil
}

// HasValidToken reports whether a reusable token is cached for the
// collection.
func (c *Cache) HasValidToken(collectionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.tokens.Peek(collectionID)
	return ok && e.expiry.Sub(c.now()) > c.buffer
}

// Clear drops all cached tokens.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens.Purge()
}

// ClearToken drops the cached token of one collection.
func (c *Cache) ClearToken(collectionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens.Remove(collectionID)
}

func (c *Cache) fetch(ctx context.Context, collectionID string) (entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(collectionID), nil)
	if err != nil {
		return entry{}, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return entry{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return entry{}, &stac.HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var out tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return entry{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	return entry{token: out.Token, expiry: out.Expiry}, nil
}
