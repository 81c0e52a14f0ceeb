// Package layers owns the registry of active map layers and keeps it
// consistent with the live map through the engine adapter.
package layers

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/stac"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/titiler"
)

// Kind distinguishes layers backed by one item from dynamic mosaics of
// a whole collection.
type Kind string

const (
	KindItem   Kind = "item"
	KindMosaic Kind = "mosaic"
)

// sourceSuffix derives the map source id from the layer id, 1:1.
const sourceSuffix = "-source"

// Record describes one active visualized layer. Kind and the
// populated origin field never change after creation.
type Record struct {
	ID         string                `json:"id"`
	Kind       Kind                  `json:"kind"`
	SourceID   string                `json:"sourceId"`
	Item       *stac.Item            `json:"item,omitempty"`
	Collection *stac.Collection      `json:"collection,omitempty"`
	Visible    bool                  `json:"visible"`
	Opacity    float64               `json:"opacity"`
	Assets     []string              `json:"assets,omitempty"`
	Options    titiler.RenderOptions `json:"renderOptions"`
	Preset     string                `json:"preset,omitempty"`

	// Mosaic addressing, fixed at creation: an inline search filter or
	// a server-side registered search id.
	Search   *stac.SearchParams `json:"search,omitempty"`
	SearchID string             `json:"searchId,omitempty"`
}

// AddOptions customizes an add operation. Resolution priority:
// RenderOptions > Assets > named/default preset > asset heuristic.
type AddOptions struct {
	RenderOptions *titiler.RenderOptions
	Assets        []string
	Preset        string
	Bounds        *orb.Bound
	Attribution   string
	Search        *stac.SearchParams
	SearchID      string
}

// Update carries partial changes for an existing layer. Nil fields are
// left untouched. Changing Assets or RenderOptions recreates the
// backing source.
type Update struct {
	Visible       *bool
	Opacity       *float64
	Assets        []string
	RenderOptions *titiler.RenderOptions
}

// preferredAssetNames is scanned first by the default-asset heuristic.
var preferredAssetNames = []string{"visual", "data", "image", "cog_default"}

// excludedAssetNames never win the heuristic's last-resort scan,
// matched as case-insensitive substrings.
var excludedAssetNames = []string{"thumbnail", "overview", "metadata", "tilejson", "rendered_preview"}

// zoomPadding is the viewport padding, in pixels, used by ZoomTo.
const zoomPadding = 40

// sanitizeID keeps alphanumerics, "-" and "_", replaces everything
// else, and truncates to 50 characters.
func sanitizeID(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	id := b.String()
	if len(id) > 50 {
		id = id[:50]
	}
	return id
}

// newLayerID generates a practically unique layer id from an origin
// identifier.
func newLayerID(origin string) string {
	return sanitizeID(origin) + "-" + uuid.NewString()[:8]
}

// defaultAssets picks the assets to render when neither options nor a
// preset decide. It never fails; the worst case is an empty selection
// left for the tiling service to reject.
func defaultAssets(assets map[string]stac.Asset) []string {
	keys := make([]string, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, name := range preferredAssetNames {
		if _, ok := assets[name]; ok {
			return []string{name}
		}
	}

	for _, k := range keys {
		t := strings.ToLower(assets[k].Type)
		if strings.Contains(t, "tiff") || strings.Contains(t, "geotiff") || strings.Contains(t, "cog") {
			return []string{k}
		}
	}

	for _, k := range keys {
		if !isExcludedAsset(k) {
			return []string{k}
		}
	}
	return nil
}

func isExcludedAsset(key string) bool {
	lower := strings.ToLower(key)
	for _, ex := range excludedAssetNames {
		if strings.Contains(lower, ex) {
			return true
		}
	}
	return false
}
