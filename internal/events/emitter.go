// Package events provides the widget's lifecycle event registry:
// ordered callback fan-out with handle-based unsubscribe.
package events

import "sync"

// Kind names a widget lifecycle event.
type Kind string

const (
	CatalogLoaded      Kind = "catalog-loaded"
	SearchStarted      Kind = "search-started"
	SearchCompleted    Kind = "search-completed"
	SearchError        Kind = "search-error"
	LayerAdded         Kind = "layer-added"
	LayerRemoved       Kind = "layer-removed"
	LayerUpdated       Kind = "layer-updated"
	CollectionSelected Kind = "collection-selected"
	ItemSelected       Kind = "item-selected"
	Error              Kind = "error"
)

// Kinds lists every event kind, for subscribers that forward the whole
// stream.
var Kinds = []Kind{
	CatalogLoaded,
	SearchStarted,
	SearchCompleted,
	SearchError,
	LayerAdded,
	LayerRemoved,
	LayerUpdated,
	CollectionSelected,
	ItemSelected,
	Error,
}

// Handler receives an event payload.
type Handler func(payload any)

// Subscription identifies one registered handler. Unsubscribing is by
// handle, never by comparing callbacks.
type Subscription struct {
	kind Kind
	id   uint64
}

type registration struct {
	id uint64
	fn Handler
}

// Emitter fans events out to subscribed handlers in insertion order.
type Emitter struct {
	mu   sync.Mutex
	next uint64
	subs map[Kind][]registration
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[Kind][]registration)}
}

// Subscribe registers a handler for an event kind and returns its
// handle.
func (e *Emitter) Subscribe(kind Kind, fn Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.subs[kind] = append(e.subs[kind], registration{id: e.next, fn: fn})
	return Subscription{kind: kind, id: e.next}
}

// Unsubscribe removes a handler by its handle; unknown handles are a
// no-op.
func (e *Emitter) Unsubscribe(s Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	regs := e.subs[s.kind]
	for i, r := range regs {
		if r.id == s.id {
			e.subs[s.kind] = append(regs[:i:i], regs[i+1:]...)
			return
		}
	}
}

// Emit calls every handler registered for the kind, in the order they
// subscribed. Handlers run outside the emitter lock, so they may
// subscribe or unsubscribe freely.
func (e *Emitter) Emit(kind Kind, payload any) {
	e.mu.Lock()
	regs := e.subs[kind]
	snapshot := make([]registration, len(regs))
	copy(snapshot, regs)
	e.mu.Unlock()

	for _, r := range snapshot {
		r.fn(payload)
	}
}
