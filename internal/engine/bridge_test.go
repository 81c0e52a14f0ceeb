package engine

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeFansOutCommands(t *testing.T) {
	b := NewBridge()
	a := b.Subscribe()
	c := b.Subscribe()

	bounds := orb.Bound{Min: orb.Point{-122.5, 37.5}, Max: orb.Point{-122, 38}}
	require.NoError(t, b.AddRasterSource("s1", "https://tiler.test/{z}/{x}/{y}", 256, bounds, "test"))
	require.NoError(t, b.AddRasterLayer("l1", "s1", 0.8, true))

	for _, ch := range []chan Command{a, c} {
		cmd := <-ch
		assert.Equal(t, "add-source", cmd.Op)
		assert.Equal(t, "s1", cmd.ID)
		assert.Equal(t, []float64{-122.5, 37.5, -122, 38}, cmd.Bounds)

		cmd = <-ch
		assert.Equal(t, "add-layer", cmd.Op)
		assert.Equal(t, "s1", cmd.SourceID)
		require.NotNil(t, cmd.Opacity)
		assert.Equal(t, 0.8, *cmd.Opacity)
	}
}

func TestBridgeUnsubscribeClosesChannel(t *testing.T) {
	b := NewBridge()
	ch := b.Subscribe()
	b.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Publishing after unsubscribe must not panic on the closed channel.
	require.NoError(t, b.RemoveLayer("l1"))
}

func TestBridgeSlowSubscriberDropsCommands(t *testing.T) {
	b := NewBridge()
	ch := b.Subscribe()

	for i := 0; i < 100; i++ {
		require.NoError(t, b.SetLayerOpacity("l1", 0.5))
	}

	assert.Equal(t, 64, len(ch))
}
