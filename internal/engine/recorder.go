package engine

import (
	"fmt"
	"sync"

	"github.com/paulmach/orb"
)

// SourceState is the recorded state of one live source.
type SourceState struct {
	URL         string
	TileSize    int
	Bounds      orb.Bound
	Attribution string
}

// LayerState is the recorded state of one live layer.
type LayerState struct {
	SourceID string
	Opacity  float64
	Visible  bool
}

// Recorder is an in-memory Engine that tracks live sources and layers
// and counts how often each source id has been created. It backs the
// registry tests and any headless use of the widget.
type Recorder struct {
	mu       sync.Mutex
	sources  map[string]SourceState
	layers   map[string]LayerState
	creates  map[string]int
	lastFit  orb.Bound
	fitCount int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		sources: make(map[string]SourceState),
		layers:  make(map[string]LayerState),
		creates: make(map[string]int),
	}
}

func (r *Recorder) AddRasterSource(id, urlTemplate string, tileSize int, bounds orb.Bound, attribution string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[id]; exists {
		return fmt.Errorf("source %q already exists", id)
	}
	r.sources[id] = SourceState{URL: urlTemplate, TileSize: tileSize, Bounds: bounds, Attribution: attribution}
	r.creates[id]++
	return nil
}

func (r *Recorder) RemoveSource(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[id]; !exists {
		return fmt.Errorf("source %q does not exist", id)
	}
	for layerID, l := range r.layers {
		if l.SourceID == id {
			return fmt.Errorf("source %q still referenced by layer %q", id, layerID)
		}
	}
	delete(r.sources, id)
	return nil
}

func (r *Recorder) AddRasterLayer(id, sourceID string, opacity float64, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.layers[id]; exists {
		return fmt.Errorf("layer %q already exists", id)
	}
	if _, exists := r.sources[sourceID]; !exists {
		return fmt.Errorf("layer %q references unknown source %q", id, sourceID)
	}
	r.layers[id] = LayerState{SourceID: sourceID, Opacity: opacity, Visible: visible}
	return nil
}

func (r *Recorder) RemoveLayer(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.layers[id]; !exists {
		return fmt.Errorf("layer %q does not exist", id)
	}
	delete(r.layers, id)
	return nil
}

func (r *Recorder) SetLayerOpacity(id string, opacity float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, exists := r.layers[id]
	if !exists {
		return fmt.Errorf("layer %q does not exist", id)
	}
	l.Opacity = opacity
	r.layers[id] = l
	return nil
}

func (r *Recorder) SetLayerVisibility(id string, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, exists := r.layers[id]
	if !exists {
		return fmt.Errorf("layer %q does not exist", id)
	}
	l.Visible = visible
	r.layers[id] = l
	return nil
}

func (r *Recorder) FitBounds(bounds orb.Bound, padding int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFit = bounds
	r.fitCount++
	return nil
}

// HasSource reports whether a source is live.
func (r *Recorder) HasSource(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sources[id]
	return ok
}

// HasLayer reports whether a layer is live.
func (r *Recorder) HasLayer(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.layers[id]
	return ok
}

// Source returns the recorded state of a live source.
func (r *Recorder) Source(id string) (SourceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sources[id]
	return s, ok
}

// Layer returns the recorded state of a live layer.
func (r *Recorder) Layer(id string) (LayerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.layers[id]
	return l, ok
}

// Creations returns how many times a source id has been created.
func (r *Recorder) Creations(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates[id]
}

// LastFit returns the bounds of the most recent FitBounds call and how
// many fits happened overall.
func (r *Recorder) LastFit() (orb.Bound, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastFit, r.fitCount
}
