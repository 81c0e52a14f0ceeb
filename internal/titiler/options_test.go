package titiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/stac"
)

func TestQueryAssetsInOrder(t *testing.T) {
	opts := RenderOptions{Assets: []string{"B04", "B03", "B02"}}
	q := opts.Query()

	require.Equal(t, []string{"B04", "B03", "B02"}, q["assets"])
	assert.NotContains(t, q, "expression")
}

func TestQueryExpression(t *testing.T) {
	opts := RenderOptions{
		Expression:   "(B08-B04)/(B08+B04)",
		Rescale:      []string{"-1,1"},
		ColormapName: "rdylgn",
	}
	q := opts.Query()

	assert.Equal(t, "(B08-B04)/(B08+B04)", q.Get("expression"))
	assert.Equal(t, "-1,1", q.Get("rescale"))
	assert.Equal(t, "rdylgn", q.Get("colormap_name"))
	assert.NotContains(t, q, "assets")
}

func TestQueryColormapJSON(t *testing.T) {
	opts := RenderOptions{Colormap: map[string]any{"0": "#000000"}}
	q := opts.Query()

	assert.Equal(t, `{"0":"#000000"}`, q.Get("colormap"))
}

func TestQueryAssetBandIndex(t *testing.T) {
	opts := RenderOptions{
		Assets: []string{"image"},
		AssetBidx: []AssetBandIndex{
			{Asset: "image", Bands: []int{4, 1, 2}},
		},
	}
	q := opts.Query()

	assert.Equal(t, "image|4,1,2", q.Get("asset_bidx"))
}

func TestQueryScalars(t *testing.T) {
	nodata := 0.0
	unscale := true
	opts := RenderOptions{
		Assets:     []string{"data"},
		Nodata:     &nodata,
		Unscale:    &unscale,
		Resampling: "bilinear",
	}
	q := opts.Query()

	assert.Equal(t, "0", q.Get("nodata"))
	assert.Equal(t, "true", q.Get("unscale"))
	assert.Equal(t, "bilinear", q.Get("resampling"))
}

func TestMergeAssetsClearsExpression(t *testing.T) {
	base := RenderOptions{Expression: "B08/B04", Rescale: []string{"0,2"}}
	merged := base.Merge(RenderOptions{Assets: []string{"visual"}})

	assert.Equal(t, []string{"visual"}, merged.Assets)
	assert.Empty(t, merged.Expression)
	assert.Equal(t, []string{"0,2"}, merged.Rescale)
}

func TestMergeExpressionClearsAssets(t *testing.T) {
	base := RenderOptions{Assets: []string{"visual"}}
	merged := base.Merge(RenderOptions{Expression: "B08/B04"})

	assert.Empty(t, merged.Assets)
	assert.Equal(t, "B08/B04", merged.Expression)
}

func TestFormatBbox(t *testing.T) {
	got := FormatBbox([]float64{-122.5, 37.5, -122.0, 38.0})
	assert.Equal(t, "-122.50, 37.50, -122.00, 38.00", got)
}

func TestItemTileURL(t *testing.T) {
	c := NewClient("https://tiler.test/api/data/v1")
	url := c.ItemTileURL("sentinel-2-l2a", "S2A_1234", RenderOptions{Assets: []string{"visual"}})

	assert.True(t, strings.HasPrefix(url, "https://tiler.test/api/data/v1/item/tiles/WebMercatorQuad/{z}/{x}/{y}@1x?"), url)
	assert.Contains(t, url, "collection=sentinel-2-l2a")
	assert.Contains(t, url, "item=S2A_1234")
	assert.Contains(t, url, "assets=visual")
}

func TestMosaicTileURLForwardsOnlyDatetimeAndBbox(t *testing.T) {
	c := NewClient("https://tiler.test/api/data/v1")
	search := &stac.SearchParams{
		Collections: []string{"sentinel-2-l2a", "landsat-c2-l2"},
		Bbox:        []float64{-122.5, 37.5, -122, 38},
		Datetime:    "2024-01-01/2024-12-31",
		Query:       map[string]any{"eo:cloud_cover": map[string]any{"lt": 10}},
	}
	url := c.MosaicTileURL("sentinel-2-l2a", RenderOptions{Assets: []string{"visual"}}, search)

	assert.Contains(t, url, "/mosaic/tiles/WebMercatorQuad/{z}/{x}/{y}@1x?")
	assert.Contains(t, url, "datetime=2024-01-01%2F2024-12-31")
	assert.Contains(t, url, "bbox=-122.5%2C37.5%2C-122%2C38")
	assert.NotContains(t, url, "cloud_cover")
	assert.NotContains(t, url, "landsat")
}

func TestSearchTileURL(t *testing.T) {
	c := NewClient("https://tiler.test/api/data/v1")
	url := c.SearchTileURL("abc123", RenderOptions{Assets: []string{"visual"}})

	assert.Contains(t, url, "searchid=abc123")
	assert.Contains(t, url, "assets=visual")
}
