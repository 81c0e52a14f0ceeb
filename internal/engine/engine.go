// Package engine defines the adapter interface to the host map
// renderer. The layer registry only talks to the map through it, so
// its own invariants (remove layer before source, never double-remove)
// hold independently of how lenient the real engine is.
package engine

import "github.com/paulmach/orb"

// Engine is the surface of the host map renderer the widget consumes.
type Engine interface {
	// AddRasterSource registers a raster tile source. The URL is a
	// template containing literal {z}/{x}/{y} placeholders.
	AddRasterSource(id, urlTemplate string, tileSize int, bounds orb.Bound, attribution string) error
	RemoveSource(id string) error

	// AddRasterLayer adds a raster layer backed by an existing source.
	AddRasterLayer(id, sourceID string, opacity float64, visible bool) error
	RemoveLayer(id string) error

	SetLayerOpacity(id string, opacity float64) error
	SetLayerVisibility(id string, visible bool) error

	// FitBounds asks the renderer to fit the viewport to bounds with
	// the given padding in pixels.
	FitBounds(bounds orb.Bound, padding int) error
}
