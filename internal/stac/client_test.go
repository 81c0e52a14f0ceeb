package stac

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchSendsExactBody(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"features": []map[string]any{{"id": "item-1", "collection": "sentinel-2-l2a"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.Search(context.Background(), SearchParams{
		Collections: []string{"sentinel-2-l2a"},
		Bbox:        []float64{-122.5, 37.5, -122, 38},
		Datetime:    "2024-01-01/2024-12-31",
	})
	require.NoError(t, err)
	require.Len(t, res.Features, 1)
	assert.Equal(t, "item-1", res.Features[0].ID)

	assert.Equal(t, map[string]any{
		"collections": []any{"sentinel-2-l2a"},
		"bbox":        []any{-122.5, 37.5, -122.0, 38.0},
		"datetime":    "2024-01-01/2024-12-31",
	}, gotBody)
}

func TestSearchSupersededIsCanceled(t *testing.T) {
	firstStarted := make(chan struct{})
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(firstStarted)
			// Hold the first search open until its context is aborted.
			<-r.Context().Done()
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"features": []map[string]any{{"id": "second"}}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	firstDone := make(chan error, 1)
	go func() {
		_, err := c.Search(context.Background(), SearchParams{Collections: []string{"a"}})
		firstDone <- err
	}()

	<-firstStarted
	res, err := c.Search(context.Background(), SearchParams{Collections: []string{"b"}})
	require.NoError(t, err)
	require.Len(t, res.Features, 1)
	assert.Equal(t, "second", res.Features[0].ID)

	select {
	case err := <-firstDone:
		assert.ErrorIs(t, err, ErrCanceled)
	case <-time.After(5 * time.Second):
		t.Fatal("first search did not finish")
	}
}

func TestSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad filter", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Search(context.Background(), SearchParams{})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "bad filter", httpErr.Body)
}

func TestCollectionsAndItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections":
			json.NewEncoder(w).Encode(map[string]any{
				"collections": []map[string]any{{"id": "sentinel-2-l2a"}, {"id": "naip"}},
			})
		case "/collections/naip/items":
			assert.Equal(t, "10", r.URL.Query().Get("limit"))
			json.NewEncoder(w).Encode(map[string]any{
				"features": []map[string]any{{"id": "n-1"}},
			})
		case "/collections/naip/items/n-1":
			json.NewEncoder(w).Encode(map[string]any{"id": "n-1", "collection": "naip"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	colls, err := c.Collections(ctx)
	require.NoError(t, err)
	require.Len(t, colls, 2)
	assert.Equal(t, "sentinel-2-l2a", colls[0].ID)

	items, err := c.Items(ctx, "naip", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item, err := c.Item(ctx, "naip", "n-1")
	require.NoError(t, err)
	assert.Equal(t, "n-1", item.ID)
}

func TestItemBound(t *testing.T) {
	it := &Item{Bbox: []float64{-122.5, 37.5, -122.0, 38.0}}
	b, ok := it.Bound()
	require.True(t, ok)
	assert.Equal(t, -122.5, b.Min[0])
	assert.Equal(t, 38.0, b.Max[1])

	_, ok = (&Item{}).Bound()
	assert.False(t, ok)
}

func TestCollectionBoundUsesFirstExtentBox(t *testing.T) {
	c := &Collection{Extent: Extent{Spatial: SpatialExtent{
		Bbox: [][]float64{{-180, -90, 180, 90}, {-10, -10, 10, 10}},
	}}}
	b, ok := c.Bound()
	require.True(t, ok)
	assert.Equal(t, -180.0, b.Min[0])
	assert.Equal(t, 90.0, b.Max[1])
}
