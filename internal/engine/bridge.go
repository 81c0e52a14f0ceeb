package engine

import (
	"sync"

	"github.com/paulmach/orb"
)

// Command is one map mutation forwarded to the browser. The viewer
// page applies it to the MapLibre instance.
type Command struct {
	Op          string    `json:"op"`
	ID          string    `json:"id,omitempty"`
	SourceID    string    `json:"sourceId,omitempty"`
	URL         string    `json:"url,omitempty"`
	TileSize    int       `json:"tileSize,omitempty"`
	Bounds      []float64 `json:"bounds,omitempty"`
	Attribution string    `json:"attribution,omitempty"`
	Opacity     *float64  `json:"opacity,omitempty"`
	Visible     *bool     `json:"visible,omitempty"`
	Padding     int       `json:"padding,omitempty"`
}

// Bridge is an Engine that fans map commands out to subscribed
// browser sessions. Each subscriber gets a buffered channel; slow
// subscribers drop commands rather than block the registry.
type Bridge struct {
	mu   sync.RWMutex
	subs map[chan Command]struct{}
}

// NewBridge creates a bridge with no subscribers.
func NewBridge() *Bridge {
	return &Bridge{subs: make(map[chan Command]struct{})}
}

// Subscribe returns a buffered channel receiving every subsequent map
// command.
func (b *Bridge) Subscribe() chan Command {
	ch := make(chan Command, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bridge) Unsubscribe(ch chan Command) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

func (b *Bridge) publish(cmd Command) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- cmd:
		default:
			// subscriber too slow, skip
		}
	}
}

func (b *Bridge) AddRasterSource(id, urlTemplate string, tileSize int, bounds orb.Bound, attribution string) error {
	b.publish(Command{
		Op:          "add-source",
		ID:          id,
		URL:         urlTemplate,
		TileSize:    tileSize,
		Bounds:      boundSlice(bounds),
		Attribution: attribution,
	})
	return nil
}

func (b *Bridge) RemoveSource(id string) error {
	b.publish(Command{Op: "remove-source", ID: id})
	return nil
}

func (b *Bridge) AddRasterLayer(id, sourceID string, opacity float64, visible bool) error {
	b.publish(Command{Op: "add-layer", ID: id, SourceID: sourceID, Opacity: &opacity, Visible: &visible})
	return nil
}

func (b *Bridge) RemoveLayer(id string) error {
	b.publish(Command{Op: "remove-layer", ID: id})
	return nil
}

func (b *Bridge) SetLayerOpacity(id string, opacity float64) error {
	b.publish(Command{Op: "set-opacity", ID: id, Opacity: &opacity})
	return nil
}

func (b *Bridge) SetLayerVisibility(id string, visible bool) error {
	b.publish(Command{Op: "set-visibility", ID: id, Visible: &visible})
	return nil
}

func (b *Bridge) FitBounds(bounds orb.Bound, padding int) error {
	b.publish(Command{Op: "fit-bounds", Bounds: boundSlice(bounds), Padding: padding})
	return nil
}

func boundSlice(b orb.Bound) []float64 {
	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}
