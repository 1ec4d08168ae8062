package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledByDefault(t *testing.T) {
	mu.Lock()
	registry = nil
	enabled.Store(false)
	mu.Unlock()

	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())
	assert.Nil(t, NewCollector())
	assert.Nil(t, Handler())
}

func TestNilCollectorIsNoOp(t *testing.T) {
	var c *Collector

	require.NotPanics(t, func() {
		c.ObserveFrame("ok", time.Millisecond)
		c.ObserveSegment(3)
		c.ObserveDecode("decoded", time.Microsecond)
		c.SetFlowCount(5)
		c.RecordFlowEviction()
		c.SetQueueBufferBytes(54993, 1024)
		c.ObserveAssetRefresh("fetched")
	})
}

func TestInitEnablesCollector(t *testing.T) {
	reg := Init()
	require.NotNil(t, reg)
	t.Cleanup(func() {
		mu.Lock()
		registry = nil
		enabled.Store(false)
		mu.Unlock()
	})

	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())

	c := NewCollector()
	require.NotNil(t, c)

	require.NotPanics(t, func() {
		c.ObserveFrame("ok", 2*time.Millisecond)
		c.ObserveSegment(3)
		c.ObserveDecode("decoded", 500*time.Microsecond)
		c.SetFlowCount(2)
		c.RecordFlowEviction()
		c.SetQueueBufferBytes(54993, 2048)
		c.ObserveAssetRefresh("cache_hit")
	})

	assert.NotNil(t, Handler())
}

func TestPortLabel(t *testing.T) {
	assert.Equal(t, "54993", portLabel(54993))
}

func TestSegmentTypeLabel(t *testing.T) {
	assert.Equal(t, "3", segmentTypeLabel(3))
}
