package titiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/stac"
)

// tilePath is the templated tile-coordinate path. The {z}/{x}/{y}
// placeholders are literal; the map engine expands them per tile.
const tilePath = "tiles/WebMercatorQuad/{z}/{x}/{y}@1x"

// Client builds tile URL templates against a tiling API root and
// proxies its non-tile endpoints.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a tiler client for the given API root, e.g.
// "https://planetarycomputer.microsoft.com/api/data/v1".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// ItemTileURL returns the tile URL template for a single item.
func (c *Client) ItemTileURL(collectionID, itemID string, opts RenderOptions) string {
	q := opts.Query()
	q.Set("collection", collectionID)
	q.Set("item", itemID)
	return fmt.Sprintf("%s/item/%s?%s", c.baseURL, tilePath, q.Encode())
}

// MosaicTileURL returns the tile URL template for a dynamic mosaic of
// a collection. Only the datetime and bbox of a search filter are
// forwarded; other search fields are not part of the mosaic path.
func (c *Client) MosaicTileURL(collectionID string, opts RenderOptions, search *stac.SearchParams) string {
	q := opts.Query()
	q.Set("collection", collectionID)
	if search != nil {
		if search.Datetime != "" {
			q.Set("datetime", search.Datetime)
		}
		if len(search.Bbox) > 0 {
			q.Set("bbox", joinFloats(search.Bbox))
		}
	}
	return fmt.Sprintf("%s/mosaic/%s?%s", c.baseURL, tilePath, q.Encode())
}

// SearchTileURL returns the tile URL template for a mosaic previously
// registered server-side, addressed by its search id.
func (c *Client) SearchTileURL(searchID string, opts RenderOptions) string {
	q := opts.Query()
	q.Set("searchid", searchID)
	return fmt.Sprintf("%s/mosaic/%s?%s", c.baseURL, tilePath, q.Encode())
}

// registerResponse is the body of POST /mosaic/register.
type registerResponse struct {
	SearchID string `json:"searchid"`
}

// RegisterMosaic registers a search server-side and returns its search
// id, used when the filter is too complex to inline in a tile URL.
func (c *Client) RegisterMosaic(ctx context.Context, params stac.SearchParams) (string, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mosaic/register", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("mosaic register failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var out registerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode register response: %w", err)
	}
	return out.SearchID, nil
}

// ItemInfo returns the raster metadata of an item's selected assets.
func (c *Client) ItemInfo(ctx context.Context, collectionID, itemID string) (map[string]any, error) {
	return c.getJSON(ctx, "/item/info", collectionID, itemID)
}

// ItemStatistics returns band statistics of an item's selected assets.
func (c *Client) ItemStatistics(ctx context.Context, collectionID, itemID string) (map[string]any, error) {
	return c.getJSON(ctx, "/item/statistics", collectionID, itemID)
}

func (c *Client) getJSON(ctx context.Context, path, collectionID, itemID string) (map[string]any, error) {
	q := url.Values{}
	q.Set("collection", collectionID)
	q.Set("item", itemID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return &stac.HTTPError{Status: resp.StatusCode, Body: strings.TrimSpace(buf.String())}
}

func joinFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}
