package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/engine"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/events"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/layers"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/stac"
)

// catalogHandler serves a minimal two collection catalog.
func catalogHandler() http.HandlerFunc {
	item := map[string]any{
		"id":         "item-1",
		"collection": "sentinel-2-l2a",
		"bbox":       []float64{-122.5, 37.5, -122.0, 38.0},
		"assets": map[string]any{
			"visual": map[string]any{
				"href": "https://store.test/visual.tif",
				"type": "image/tiff; application=geotiff; profile=cloud-optimized",
			},
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections":
			json.NewEncoder(w).Encode(map[string]any{
				"collections": []map[string]any{{"id": "sentinel-2-l2a"}, {"id": "naip"}},
			})
		case "/collections/sentinel-2-l2a":
			json.NewEncoder(w).Encode(map[string]any{"id": "sentinel-2-l2a"})
		case "/collections/sentinel-2-l2a/items/item-1":
			json.NewEncoder(w).Encode(item)
		case "/search":
			json.NewEncoder(w).Encode(map[string]any{"features": []any{item}})
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestController(t *testing.T, stacHandler http.HandlerFunc) *Controller {
	t.Helper()
	stacSrv := httptest.NewServer(stacHandler)
	t.Cleanup(stacSrv.Close)

	tilerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/mosaic/register" {
			json.NewEncoder(w).Encode(map[string]string{"searchid": "reg-1"})
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(tilerSrv.Close)

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"token":  "st=2024&sig=abc",
			"expiry": time.Now().Add(time.Hour).Format(time.RFC3339),
		})
	}))
	t.Cleanup(tokenSrv.Close)

	return New(Config{StacURL: stacSrv.URL, TilerURL: tilerSrv.URL, TokenURL: tokenSrv.URL})
}

func TestLayerOpsRequireAttach(t *testing.T) {
	c := newTestController(t, catalogHandler())

	_, err := c.AddItemLayer(&stac.Item{ID: "x"}, layers.AddOptions{})
	assert.ErrorIs(t, err, ErrNotAttached)

	_, err = c.Layers()
	assert.ErrorIs(t, err, ErrNotAttached)

	err = c.RemoveLayer("x")
	assert.ErrorIs(t, err, ErrNotAttached)

	// Closing an unattached widget is fine.
	assert.NoError(t, c.Close())
}

func TestLoadCatalogEmitsEvent(t *testing.T) {
	c := newTestController(t, catalogHandler())

	var got []stac.Collection
	c.Subscribe(events.CatalogLoaded, func(p any) {
		got = p.([]stac.Collection)
	})

	colls, err := c.LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, colls, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, colls, c.Collections())
}

func TestSearchLifecycle(t *testing.T) {
	c := newTestController(t, catalogHandler())

	var kinds []events.Kind
	c.Subscribe(events.SearchStarted, func(any) { kinds = append(kinds, events.SearchStarted) })
	c.Subscribe(events.SearchCompleted, func(any) { kinds = append(kinds, events.SearchCompleted) })

	items, err := c.Search(context.Background(), stac.SearchParams{Collections: []string{"sentinel-2-l2a"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []events.Kind{events.SearchStarted, events.SearchCompleted}, kinds)

	searching, errMsg := c.SearchState()
	assert.False(t, searching)
	assert.Empty(t, errMsg)
	assert.Len(t, c.Results(), 1)
}

func TestSearchErrorIsRecordedAndEmitted(t *testing.T) {
	c := newTestController(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad filter", http.StatusBadRequest)
	})

	var emitted error
	c.Subscribe(events.SearchError, func(p any) { emitted = p.(error) })

	_, err := c.Search(context.Background(), stac.SearchParams{})
	require.Error(t, err)
	require.Error(t, emitted)

	searching, errMsg := c.SearchState()
	assert.False(t, searching)
	assert.Contains(t, errMsg, "400")
}

func TestSelectCollectionClearsItemSelection(t *testing.T) {
	c := newTestController(t, catalogHandler())
	ctx := context.Background()

	_, err := c.SelectItem(ctx, "sentinel-2-l2a", "item-1")
	require.NoError(t, err)

	coll, err := c.SelectCollection(ctx, "sentinel-2-l2a")
	require.NoError(t, err)
	assert.Equal(t, "sentinel-2-l2a", coll.ID)

	selColl, selItem := c.Selection()
	assert.Equal(t, "sentinel-2-l2a", selColl.ID)
	assert.Nil(t, selItem)
}

func TestAttachedLayerLifecycle(t *testing.T) {
	c := newTestController(t, catalogHandler())
	rec := engine.NewRecorder()
	c.Attach(rec)

	item, err := c.SelectItem(context.Background(), "sentinel-2-l2a", "item-1")
	require.NoError(t, err)

	var added, removed int
	c.Subscribe(events.LayerAdded, func(any) { added++ })
	c.Subscribe(events.LayerRemoved, func(any) { removed++ })

	layer, err := c.AddItemLayer(item, layers.AddOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.True(t, rec.HasLayer(layer.ID))

	list, err := c.Layers()
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, c.RemoveLayer(layer.ID))
	assert.Equal(t, 1, removed)
	assert.False(t, rec.HasLayer(layer.ID))
}

func TestAddMosaicLayerRegistersSearch(t *testing.T) {
	c := newTestController(t, catalogHandler())
	rec := engine.NewRecorder()
	c.Attach(rec)

	coll := &stac.Collection{ID: "sentinel-2-l2a"}
	search := &stac.SearchParams{Collections: []string{"sentinel-2-l2a"}, Datetime: "2024-01-01/2024-12-31"}

	layer, err := c.AddMosaicLayer(context.Background(), coll, layers.AddOptions{Search: search}, true)
	require.NoError(t, err)
	assert.Equal(t, "reg-1", layer.SearchID)

	src, ok := rec.Source(layer.SourceID)
	require.True(t, ok)
	assert.Contains(t, src.URL, "searchid=reg-1")
}

func TestSignedAssetURL(t *testing.T) {
	c := newTestController(t, catalogHandler())

	item := &stac.Item{
		ID:         "item-1",
		Collection: "sentinel-2-l2a",
		Assets: map[string]stac.Asset{
			"visual": {Href: "https://store.test/visual.tif"},
		},
	}

	signed, err := c.SignedAssetURL(context.Background(), item, "visual")
	require.NoError(t, err)
	assert.Equal(t, "https://store.test/visual.tif?st=2024&sig=abc", signed)

	_, err = c.SignedAssetURL(context.Background(), item, "missing")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestCloseRemovesLayers(t *testing.T) {
	c := newTestController(t, catalogHandler())
	rec := engine.NewRecorder()
	c.Attach(rec)

	item, err := c.SelectItem(context.Background(), "sentinel-2-l2a", "item-1")
	require.NoError(t, err)

	layer, err := c.AddItemLayer(item, layers.AddOptions{})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.False(t, rec.HasLayer(layer.ID))
	assert.False(t, rec.HasSource(layer.SourceID))
}
