// Package stac models the catalog objects returned by a STAC API and
// provides a search client for it.
package stac

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Asset is a single downloadable or renderable file attached to an item
// or declared in a collection's item_assets schema.
type Asset struct {
	Href        string   `json:"href,omitempty"`
	Type        string   `json:"type,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// ItemProperties holds the common item metadata fields the widget cares
// about. Everything else stays in the raw JSON.
type ItemProperties struct {
	Datetime   string   `json:"datetime,omitempty"`
	CloudCover *float64 `json:"eo:cloud_cover,omitempty"`
	Platform   string   `json:"platform,omitempty"`
}

// Link is a STAC hypermedia link.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
	Type string `json:"type,omitempty"`
}

// Item is a single dated, geolocated catalog entry (a "scene").
type Item struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection,omitempty"`
	Geometry   *geojson.Geometry `json:"geometry,omitempty"`
	Bbox       []float64         `json:"bbox,omitempty"`
	Properties ItemProperties    `json:"properties"`
	Assets     map[string]Asset  `json:"assets,omitempty"`
	Links      []Link            `json:"links,omitempty"`
}

// Bound returns the item's bounding box as an orb.Bound, or false when
// the item carries no usable bbox.
func (it *Item) Bound() (orb.Bound, bool) {
	return boundFromBbox(it.Bbox)
}

// SpatialExtent is the collection-level list of bounding boxes.
type SpatialExtent struct {
	Bbox [][]float64 `json:"bbox"`
}

// TemporalExtent is the collection-level list of datetime intervals.
type TemporalExtent struct {
	Interval [][]*string `json:"interval"`
}

// Extent combines the spatial and temporal coverage of a collection.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// Collection is a named group of items sharing schema and provenance.
type Collection struct {
	ID          string           `json:"id"`
	Title       string           `json:"title,omitempty"`
	Description string           `json:"description,omitempty"`
	License     string           `json:"license,omitempty"`
	Extent      Extent           `json:"extent"`
	ItemAssets  map[string]Asset `json:"item_assets,omitempty"`
	Keywords    []string         `json:"keywords,omitempty"`
	Links       []Link           `json:"links,omitempty"`
}

// Bound returns the collection's first declared spatial extent box, or
// false when the collection declares none.
func (c *Collection) Bound() (orb.Bound, bool) {
	if len(c.Extent.Spatial.Bbox) == 0 {
		return orb.Bound{}, false
	}
	return boundFromBbox(c.Extent.Spatial.Bbox[0])
}

// SortField is one sortby entry of a search request.
type SortField struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// SearchParams is the body of a POST /search request. Zero-valued
// fields are omitted from the wire body.
type SearchParams struct {
	Collections []string          `json:"collections,omitempty"`
	Bbox        []float64         `json:"bbox,omitempty"`
	Datetime    string            `json:"datetime,omitempty"`
	Intersects  *geojson.Geometry `json:"intersects,omitempty"`
	IDs         []string          `json:"ids,omitempty"`
	Limit       int               `json:"limit,omitempty"`
	Query       map[string]any    `json:"query,omitempty"`
	SortBy      []SortField       `json:"sortby,omitempty"`
	Filter      map[string]any    `json:"filter,omitempty"`
	FilterLang  string            `json:"filter-lang,omitempty"`
}

// SearchResult is the feature collection returned by POST /search.
type SearchResult struct {
	Features []Item `json:"features"`
	Links    []Link `json:"links,omitempty"`
}

// collectionList is the wrapper object of GET /collections.
type collectionList struct {
	Collections []Collection `json:"collections"`
}

// itemList is the feature collection of GET /collections/{id}/items.
type itemList struct {
	Features []Item `json:"features"`
}

func boundFromBbox(bbox []float64) (orb.Bound, bool) {
	if len(bbox) < 4 {
		return orb.Bound{}, false
	}
	// 3D bboxes carry [west, south, elev, east, north, elev].
	if len(bbox) >= 6 {
		return orb.Bound{
			Min: orb.Point{bbox[0], bbox[1]},
			Max: orb.Point{bbox[3], bbox[4]},
		}, true
	}
	return orb.Bound{
		Min: orb.Point{bbox[0], bbox[1]},
		Max: orb.Point{bbox[2], bbox[3]},
	}, true
}
