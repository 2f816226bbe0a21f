package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellWatchDeliversCurrentFirst(t *testing.T) {
	c := NewCell(42)

	ch, cancel := c.Watch()
	defer cancel()

	assert.Equal(t, 42, receiveInt(t, ch))
}

func TestCellWatchSeesSets(t *testing.T) {
	c := NewCell(0)

	ch, cancel := c.Watch()
	defer cancel()
	require.Equal(t, 0, receiveInt(t, ch))

	c.Set(1)
	assert.Equal(t, 1, receiveInt(t, ch))
}

func TestCellConflatesForSlowWatcher(t *testing.T) {
	c := NewCell(0)

	ch, cancel := c.Watch()
	defer cancel()
	require.Equal(t, 0, receiveInt(t, ch))

	for i := 1; i <= 5; i++ {
		c.Set(i)
	}
	assert.Equal(t, 5, receiveInt(t, ch))
}

func TestCellUpdate(t *testing.T) {
	c := NewCell([]string{"a"})
	c.Update(func(v []string) []string { return append([]string{"z"}, v...) })
	assert.Equal(t, []string{"z", "a"}, c.Get())
}

func TestCellCancelStopsDelivery(t *testing.T) {
	c := NewCell(0)

	ch, cancel := c.Watch()
	require.Equal(t, 0, receiveInt(t, ch))
	cancel()

	c.Set(1)
	select {
	case v := <-ch:
		t.Fatalf("received %d after cancel", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func receiveInt(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cell delivery")
		return 0
	}
}
