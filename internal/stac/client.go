package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrCanceled reports a search that was superseded by a newer one. It
// is never a user-visible failure.
var ErrCanceled = errors.New("search canceled")

// HTTPError is a non-2xx response from a remote service, carrying the
// status code and the response body text.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Body)
}

// Client talks to a STAC API. Safe for concurrent use; a new Search
// cancels any in-flight one.
type Client struct {
	baseURL string
	httpc   *http.Client

	mu           sync.Mutex
	cancelSearch context.CancelFunc
	searchGen    uint64
}

// NewClient creates a STAC client for the given API root, e.g.
// "https://planetarycomputer.microsoft.com/api/stac/v1".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Collections lists all catalog collections.
func (c *Client) Collections(ctx context.Context) ([]Collection, error) {
	var out collectionList
	if err := c.getJSON(ctx, "/collections", &out); err != nil {
		return nil, err
	}
	return out.Collections, nil
}

// Collection fetches a single collection by id.
func (c *Client) Collection(ctx context.Context, id string) (*Collection, error) {
	var out Collection
	if err := c.getJSON(ctx, "/collections/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Items lists up to limit items of a collection.
func (c *Client) Items(ctx context.Context, collectionID string, limit int) ([]Item, error) {
	path := fmt.Sprintf("/collections/%s/items?limit=%d", url.PathEscape(collectionID), limit)
	var out itemList
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Features, nil
}

// Item fetches a single item by collection and item id.
func (c *Client) Item(ctx context.Context, collectionID, itemID string) (*Item, error) {
	path := "/collections/" + url.PathEscape(collectionID) + "/items/" + url.PathEscape(itemID)
	var out Item
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search issues POST /search. Starting a new search aborts the
// previous in-flight one; the aborted call returns ErrCanceled.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	c.mu.Lock()
	if c.cancelSearch != nil {
		c.cancelSearch()
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancelSearch = cancel
	c.searchGen++
	gen := c.searchGen
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		// A newer search may already have replaced the cancel func.
		if c.searchGen == gen {
			c.cancelSearch = nil
		}
		c.mu.Unlock()
	}()

	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
			return nil, ErrCanceled
		}
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
			return nil, ErrCanceled
		}
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &out, nil
}

// getJSON issues a GET against the API root and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkStatus converts a non-2xx response into an *HTTPError with the
// body text attached.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
}
