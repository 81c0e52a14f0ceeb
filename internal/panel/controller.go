// Package panel orchestrates catalog loading, search and selection
// state, and drives the layer registry on behalf of the UI.
package panel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/opengeos/maplibre-gl-planetary-computer/internal/engine"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/events"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/layers"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/presets"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/sign"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/stac"
	"github.com/opengeos/maplibre-gl-planetary-computer/internal/titiler"
)

// ErrNotAttached reports a layer operation invoked before the widget
// was attached to a map engine.
var ErrNotAttached = errors.New("widget is not attached to a map")

// ErrAssetNotFound reports a requested asset key missing from an
// item's asset map.
var ErrAssetNotFound = errors.New("asset not found")

// Config wires the controller's remote endpoints.
type Config struct {
	StacURL  string
	TilerURL string
	TokenURL string
	Presets  *presets.Registry
}

// Controller is the widget's public surface. All methods are safe for
// concurrent use.
type Controller struct {
	catalog *stac.Client
	tiler   *titiler.Client
	tokens  *sign.Cache
	presets *presets.Registry
	emitter *events.Emitter

	mu                 sync.RWMutex
	layers             *layers.Manager
	collections        []stac.Collection
	selectedCollection *stac.Collection
	selectedItem       *stac.Item
	results            []stac.Item
	searchErr          string
	searching          bool
}

// New creates an unattached controller.
func New(cfg Config) *Controller {
	reg := cfg.Presets
	if reg == nil {
		reg = presets.Builtin()
	}
	return &Controller{
		catalog: stac.NewClient(cfg.StacURL),
		tiler:   titiler.NewClient(cfg.TilerURL),
		tokens:  sign.NewCache(cfg.TokenURL),
		presets: reg,
		emitter: events.NewEmitter(),
	}
}

// Attach binds the controller to a map engine, enabling layer
// operations.
func (c *Controller) Attach(eng engine.Engine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers = layers.NewManager(eng, c.tiler, c.presets)
}

// Subscribe registers a lifecycle event handler.
func (c *Controller) Subscribe(kind events.Kind, fn events.Handler) events.Subscription {
	return c.emitter.Subscribe(kind, fn)
}

// Unsubscribe removes a handler by its handle.
func (c *Controller) Unsubscribe(s events.Subscription) {
	c.emitter.Unsubscribe(s)
}

// Presets returns the preset registry.
func (c *Controller) Presets() *presets.Registry {
	return c.presets
}

// Tiler returns the tiling client for metadata lookups.
func (c *Controller) Tiler() *titiler.Client {
	return c.tiler
}

// LoadCatalog fetches the collection list and emits catalog-loaded.
func (c *Controller) LoadCatalog(ctx context.Context) ([]stac.Collection, error) {
	colls, err := c.catalog.Collections(ctx)
	if err != nil {
		c.recordError(err)
		return nil, err
	}

	c.mu.Lock()
	c.collections = colls
	c.mu.Unlock()

	c.emitter.Emit(events.CatalogLoaded, colls)
	return colls, nil
}

// Collections returns the loaded collection list.
func (c *Controller) Collections() []stac.Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]stac.Collection, len(c.collections))
	copy(out, c.collections)
	return out
}

// Search runs a catalog search. A search superseded by a newer one is
// swallowed (nil result, nil error); real failures are recorded in the
// panel state, emitted as search-error, and returned to the direct
// caller.
func (c *Controller) Search(ctx context.Context, params stac.SearchParams) ([]stac.Item, error) {
	c.mu.Lock()
	c.searching = true
	c.searchErr = ""
	c.mu.Unlock()
	c.emitter.Emit(events.SearchStarted, params)

	res, err := c.catalog.Search(ctx, params)
	if errors.Is(err, stac.ErrCanceled) {
		log.Printf("search canceled, superseded by a newer one")
		return nil, nil
	}
	if err != nil {
		c.mu.Lock()
		c.searching = false
		c.searchErr = err.Error()
		c.mu.Unlock()
		c.emitter.Emit(events.SearchError, err)
		return nil, err
	}

	// A nil result slice is reserved for superseded searches.
	if res.Features == nil {
		res.Features = []stac.Item{}
	}

	c.mu.Lock()
	c.searching = false
	c.results = res.Features
	c.mu.Unlock()

	c.emitter.Emit(events.SearchCompleted, res.Features)
	return res.Features, nil
}

// Results returns the latest search results.
func (c *Controller) Results() []stac.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]stac.Item, len(c.results))
	copy(out, c.results)
	return out
}

// SearchState reports whether a search is in flight and the last
// recorded search error message.
func (c *Controller) SearchState() (searching bool, errMsg string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.searching, c.searchErr
}

// SelectCollection fetches and selects a collection, clearing any item
// selection.
func (c *Controller) SelectCollection(ctx context.Context, id string) (*stac.Collection, error) {
	coll, err := c.catalog.Collection(ctx, id)
	if err != nil {
		c.recordError(err)
		return nil, err
	}

	c.mu.Lock()
	c.selectedCollection = coll
	c.selectedItem = nil
	c.mu.Unlock()

	c.emitter.Emit(events.CollectionSelected, coll)
	return coll, nil
}

// SelectItem fetches and selects an item of the currently relevant
// collection.
func (c *Controller) SelectItem(ctx context.Context, collectionID, itemID string) (*stac.Item, error) {
	item, err := c.catalog.Item(ctx, collectionID, itemID)
	if err != nil {
		c.recordError(err)
		return nil, err
	}

	c.mu.Lock()
	c.selectedItem = item
	c.mu.Unlock()

	c.emitter.Emit(events.ItemSelected, item)
	return item, nil
}

// Selection returns the currently selected collection and item.
func (c *Controller) Selection() (*stac.Collection, *stac.Item) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectedCollection, c.selectedItem
}

// Items lists up to limit items of a collection.
func (c *Controller) Items(ctx context.Context, collectionID string, limit int) ([]stac.Item, error) {
	items, err := c.catalog.Items(ctx, collectionID, limit)
	if err != nil {
		c.recordError(err)
		return nil, err
	}
	return items, nil
}

// AddItemLayer adds a layer for an item and emits layer-added.
func (c *Controller) AddItemLayer(item *stac.Item, opts layers.AddOptions) (*layers.Record, error) {
	mgr, err := c.manager()
	if err != nil {
		return nil, err
	}
	rec, err := mgr.AddItemLayer(item, opts)
	if err != nil {
		c.recordError(err)
		return nil, err
	}
	c.emitter.Emit(events.LayerAdded, rec)
	return rec, nil
}

// AddMosaicLayer adds a mosaic layer for a collection and emits
// layer-added. When a search filter is supplied and registration is
// requested, the search is registered server-side first.
func (c *Controller) AddMosaicLayer(ctx context.Context, coll *stac.Collection, opts layers.AddOptions, register bool) (*layers.Record, error) {
	mgr, err := c.manager()
	if err != nil {
		return nil, err
	}
	if register && opts.Search != nil && opts.SearchID == "" {
		searchID, err := c.tiler.RegisterMosaic(ctx, *opts.Search)
		if err != nil {
			c.recordError(err)
			return nil, err
		}
		opts.SearchID = searchID
	}
	rec, err := mgr.AddMosaicLayer(coll, opts)
	if err != nil {
		c.recordError(err)
		return nil, err
	}
	c.emitter.Emit(events.LayerAdded, rec)
	return rec, nil
}

// UpdateLayer applies partial changes to a layer and emits
// layer-updated when the layer exists.
func (c *Controller) UpdateLayer(id string, upd layers.Update) (*layers.Record, error) {
	mgr, err := c.manager()
	if err != nil {
		return nil, err
	}
	rec, err := mgr.Update(id, upd)
	if err != nil {
		c.recordError(err)
		return nil, err
	}
	if rec != nil {
		c.emitter.Emit(events.LayerUpdated, rec)
	}
	return rec, nil
}

// RemoveLayer removes a layer and emits layer-removed.
func (c *Controller) RemoveLayer(id string) error {
	mgr, err := c.manager()
	if err != nil {
		return err
	}
	if err := mgr.Remove(id); err != nil {
		c.recordError(err)
		return err
	}
	c.emitter.Emit(events.LayerRemoved, id)
	return nil
}

// ZoomToLayer fits the viewport to a layer's bounds.
func (c *Controller) ZoomToLayer(id string) error {
	mgr, err := c.manager()
	if err != nil {
		return err
	}
	return mgr.ZoomTo(id)
}

// Layers returns all active layer records.
func (c *Controller) Layers() ([]layers.Record, error) {
	mgr, err := c.manager()
	if err != nil {
		return nil, err
	}
	return mgr.List(), nil
}

// Layer returns one layer record.
func (c *Controller) Layer(id string) (layers.Record, bool, error) {
	mgr, err := c.manager()
	if err != nil {
		return layers.Record{}, false, err
	}
	rec, ok := mgr.Get(id)
	return rec, ok, nil
}

// SignedAssetURL returns a download URL for an item asset with a
// short-lived token appended.
func (c *Controller) SignedAssetURL(ctx context.Context, item *stac.Item, assetKey string) (string, error) {
	asset, ok := item.Assets[assetKey]
	if !ok {
		return "", fmt.Errorf("%w: %q in item %s", ErrAssetNotFound, assetKey, item.ID)
	}
	signed, err := c.tokens.SignURL(ctx, asset.Href, item.Collection)
	if err != nil {
		c.recordError(err)
		return "", err
	}
	return signed, nil
}

// Tokens returns the token cache for introspection and invalidation.
func (c *Controller) Tokens() *sign.Cache {
	return c.tokens
}

// Close removes every active layer; called at widget teardown.
func (c *Controller) Close() error {
	c.mu.RLock()
	mgr := c.layers
	c.mu.RUnlock()
	if mgr == nil {
		return nil
	}
	return mgr.RemoveAll()
}

func (c *Controller) manager() (*layers.Manager, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.layers == nil {
		return nil, ErrNotAttached
	}
	return c.layers, nil
}

func (c *Controller) recordError(err error) {
	log.Printf("panel: %v", err)
	c.emitter.Emit(events.Error, err)
}
