package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitCallsHandlersInSubscriptionOrder(t *testing.T) {
	e := NewEmitter()

	var order []string
	e.Subscribe(LayerAdded, func(any) { order = append(order, "first") })
	e.Subscribe(LayerAdded, func(any) { order = append(order, "second") })
	e.Subscribe(LayerRemoved, func(any) { order = append(order, "other") })

	e.Emit(LayerAdded, nil)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestEmitPassesPayload(t *testing.T) {
	e := NewEmitter()

	var got any
	e.Subscribe(SearchCompleted, func(p any) { got = p })

	e.Emit(SearchCompleted, 42)
	assert.Equal(t, 42, got)
}

func TestUnsubscribeByHandle(t *testing.T) {
	e := NewEmitter()

	var calls int
	// Two identical callbacks; only the handle distinguishes them.
	a := e.Subscribe(Error, func(any) { calls++ })
	e.Subscribe(Error, func(any) { calls++ })

	e.Unsubscribe(a)
	e.Emit(Error, nil)

	assert.Equal(t, 1, calls)

	// Unknown handles are a no-op.
	e.Unsubscribe(a)
	e.Emit(Error, nil)
	assert.Equal(t, 2, calls)
}

func TestHandlerMayUnsubscribeDuringEmit(t *testing.T) {
	e := NewEmitter()

	var sub Subscription
	var calls int
	sub = e.Subscribe(CatalogLoaded, func(any) {
		calls++
		e.Unsubscribe(sub)
	})

	e.Emit(CatalogLoaded, nil)
	e.Emit(CatalogLoaded, nil)

	assert.Equal(t, 1, calls)
}
