// Package pcclient is a small client SDK for the widget API.
package pcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a running widget server.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a client for the given server base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Health is the body of GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Layer is the API view of an active layer record.
type Layer struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	SourceID string   `json:"sourceId"`
	Visible  bool     `json:"visible"`
	Opacity  float64  `json:"opacity"`
	Assets   []string `json:"assets"`
	Preset   string   `json:"preset,omitempty"`
}

// AddItemLayerRequest adds a layer for a single catalog item.
type AddItemLayerRequest struct {
	Collection string   `json:"collection"`
	Item       string   `json:"item"`
	Assets     []string `json:"assets,omitempty"`
	Preset     string   `json:"preset,omitempty"`
}

// GetHealth checks server health.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListLayers returns all active layers.
func (c *Client) ListLayers(ctx context.Context) ([]Layer, error) {
	var out struct {
		Layers []Layer `json:"layers"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/layers", nil, &out); err != nil {
		return nil, err
	}
	return out.Layers, nil
}

// AddItemLayer adds a layer for an item and returns its record.
func (c *Client) AddItemLayer(ctx context.Context, req AddItemLayerRequest) (*Layer, error) {
	var out Layer
	if err := c.do(ctx, http.MethodPost, "/api/v1/layers/item", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveLayer removes a layer by id.
func (c *Client) RemoveLayer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/layers/"+url.PathEscape(id), nil, nil)
}

// DownloadURL returns a signed download URL for an item asset.
func (c *Client) DownloadURL(ctx context.Context, collection, item, asset string) (string, error) {
	q := url.Values{}
	q.Set("collection", collection)
	q.Set("item", item)
	q.Set("asset", asset)

	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/download?"+q.Encode(), nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
