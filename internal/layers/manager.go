package layers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/engine"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/presets"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/stac"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/titiler"
)

// Manager keeps the layer registry and the live map consistent. Every
// registered record has exactly one live source and one live layer,
// both keyed by values derived from the record id.
type Manager struct {
	engine  engine.Engine
	tiler   *titiler.Client
	presets *presets.Registry

	mu      sync.RWMutex
	records map[string]*Record
}

// NewManager creates a registry driving the given engine.
func NewManager(eng engine.Engine, tiler *titiler.Client, reg *presets.Registry) *Manager {
	return &Manager{
		engine:  eng,
		tiler:   tiler,
		presets: reg,
		records: make(map[string]*Record),
	}
}

// AddItemLayer visualizes a single catalog item. A failed add leaves
// no record and no live map state behind.
func (m *Manager) AddItemLayer(item *stac.Item, opts AddOptions) (*Record, error) {
	ro, presetName := m.resolve(item.Collection, item.Assets, opts)

	rec := &Record{
		ID:      newLayerID(item.ID),
		Kind:    KindItem,
		Item:    item,
		Visible: true,
		Opacity: 1,
		Assets:  ro.Assets,
		Options: ro,
		Preset:  presetName,
	}
	rec.SourceID = rec.ID + sourceSuffix

	url := m.tiler.ItemTileURL(item.Collection, item.ID, ro)
	bounds := m.itemBounds(rec, opts.Bounds)
	return m.register(rec, url, bounds, opts.Attribution)
}

// AddMosaicLayer visualizes a dynamic mosaic of a collection, using
// the collection's declared item_assets schema for asset resolution.
func (m *Manager) AddMosaicLayer(coll *stac.Collection, opts AddOptions) (*Record, error) {
	ro, presetName := m.resolve(coll.ID, coll.ItemAssets, opts)

	rec := &Record{
		ID:         newLayerID(coll.ID),
		Kind:       KindMosaic,
		Collection: coll,
		Visible:    true,
		Opacity:    1,
		Assets:     ro.Assets,
		Options:    ro,
		Preset:     presetName,
		Search:     opts.Search,
		SearchID:   opts.SearchID,
	}
	rec.SourceID = rec.ID + sourceSuffix

	var url string
	if opts.SearchID != "" {
		url = m.tiler.SearchTileURL(opts.SearchID, ro)
	} else {
		url = m.tiler.MosaicTileURL(coll.ID, ro, opts.Search)
	}
	bounds := m.mosaicBounds(rec, opts.Bounds)
	return m.register(rec, url, bounds, opts.Attribution)
}

// Remove tears down a layer: live layer first, then its source, then
// the record. Unknown ids are a silent no-op.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.records, id)
	m.mu.Unlock()

	if err := m.engine.RemoveLayer(rec.ID); err != nil {
		return err
	}
	return m.engine.RemoveSource(rec.SourceID)
}

// Update applies partial changes to a layer. Visibility and opacity
// are applied to the live layer directly; a change to assets or render
// options tears the source and layer down and recreates them with the
// previous visibility and opacity preserved. Unknown ids are a silent
// no-op.
func (m *Manager) Update(id string, upd Update) (*Record, error) {
	m.mu.Lock()
	rec, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return nil, nil
	}

	if upd.RenderOptions == nil && upd.Assets == nil {
		if upd.Visible != nil {
			if err := m.engine.SetLayerVisibility(rec.ID, *upd.Visible); err != nil {
				m.mu.Unlock()
				return nil, err
			}
			rec.Visible = *upd.Visible
		}
		if upd.Opacity != nil {
			if err := m.engine.SetLayerOpacity(rec.ID, *upd.Opacity); err != nil {
				m.mu.Unlock()
				return nil, err
			}
			rec.Opacity = *upd.Opacity
		}
		out := *rec
		m.mu.Unlock()
		return &out, nil
	}

	merged := rec.Options
	if upd.RenderOptions != nil {
		merged = merged.Merge(*upd.RenderOptions)
	}
	if upd.Assets != nil {
		merged.Assets = upd.Assets
		merged.Expression = ""
	}

	visible := rec.Visible
	if upd.Visible != nil {
		visible = *upd.Visible
	}
	opacity := rec.Opacity
	if upd.Opacity != nil {
		opacity = *upd.Opacity
	}

	var url string
	var bounds orb.Bound
	switch rec.Kind {
	case KindItem:
		url = m.tiler.ItemTileURL(rec.Item.Collection, rec.Item.ID, merged)
		bounds = m.itemBounds(rec, nil)
	case KindMosaic:
		if rec.SearchID != "" {
			url = m.tiler.SearchTileURL(rec.SearchID, merged)
		} else {
			url = m.tiler.MosaicTileURL(rec.Collection.ID, merged, rec.Search)
		}
		bounds = m.mosaicBounds(rec, nil)
	}

	if err := m.engine.RemoveLayer(rec.ID); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := m.engine.RemoveSource(rec.SourceID); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := m.engine.AddRasterSource(rec.SourceID, url, 256, bounds, ""); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if err := m.engine.AddRasterLayer(rec.ID, rec.SourceID, opacity, visible); err != nil {
		m.mu.Unlock()
		return nil, err
	}

	rec.Options = merged
	rec.Assets = merged.Assets
	rec.Visible = visible
	rec.Opacity = opacity
	// The bundle no longer comes verbatim from a preset.
	rec.Preset = ""

	out := *rec
	m.mu.Unlock()
	return &out, nil
}

// ZoomTo fits the viewport to a layer's bounds. A layer without
// determinable bounds is a no-op.
func (m *Manager) ZoomTo(id string) error {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	var bounds orb.Bound
	var have bool
	switch rec.Kind {
	case KindItem:
		bounds, have = rec.Item.Bound()
	case KindMosaic:
		bounds, have = rec.Collection.Bound()
	}
	if !have {
		return nil
	}
	return m.engine.FitBounds(bounds, zoomPadding)
}

// RemoveAll removes every registered layer; used at widget teardown.
func (m *Manager) RemoveAll() error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var firstErr error
	for _, id := range ids {
		if err := m.Remove(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Get returns a copy of a layer record.
func (m *Manager) Get(id string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// List returns copies of all records, sorted by id.
func (m *Manager) List() []Record {
	m.mu.RLock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// resolve picks the render options and preset name for an add, in
// priority order: explicit options, explicit assets, a named preset,
// the collection default preset, the asset heuristic.
func (m *Manager) resolve(collectionID string, assets map[string]stac.Asset, opts AddOptions) (titiler.RenderOptions, string) {
	if opts.RenderOptions != nil {
		return *opts.RenderOptions, ""
	}
	if len(opts.Assets) > 0 {
		return titiler.RenderOptions{Assets: opts.Assets}, ""
	}
	if opts.Preset != "" {
		if p, ok := m.presets.Get(collectionID, opts.Preset); ok {
			return p.Options, p.Name
		}
	}
	if p, ok := m.presets.Default(collectionID); ok {
		return p.Options, p.Name
	}
	return titiler.RenderOptions{Assets: defaultAssets(assets)}, ""
}

// register creates the live source and layer for a new record as one
// step from the caller's perspective, then stores the record.
func (m *Manager) register(rec *Record, url string, bounds orb.Bound, attribution string) (*Record, error) {
	if err := m.engine.AddRasterSource(rec.SourceID, url, 256, bounds, attribution); err != nil {
		return nil, fmt.Errorf("failed to add source %s: %w", rec.SourceID, err)
	}
	if err := m.engine.AddRasterLayer(rec.ID, rec.SourceID, rec.Opacity, rec.Visible); err != nil {
		// Best effort: don't leave an orphaned source behind.
		m.engine.RemoveSource(rec.SourceID)
		return nil, fmt.Errorf("failed to add layer %s: %w", rec.ID, err)
	}

	m.mu.Lock()
	m.records[rec.ID] = rec
	out := *rec
	m.mu.Unlock()
	return &out, nil
}

// itemBounds derives source bounds for an item layer.
func (m *Manager) itemBounds(rec *Record, override *orb.Bound) orb.Bound {
	if override != nil {
		return *override
	}
	if b, ok := rec.Item.Bound(); ok {
		return b
	}
	return worldBound()
}

// mosaicBounds derives source bounds for a mosaic layer from the
// collection's first declared spatial extent box.
func (m *Manager) mosaicBounds(rec *Record, override *orb.Bound) orb.Bound {
	if override != nil {
		return *override
	}
	if b, ok := rec.Collection.Bound(); ok {
		return b
	}
	return worldBound()
}

func worldBound() orb.Bound {
	return orb.Bound{Min: orb.Point{-180, -85.051129}, Max: orb.Point{180, 85.051129}}
}
