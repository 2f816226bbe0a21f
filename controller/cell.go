package controller

import "sync"

// Cell holds a single observable value. Watchers receive the current value
// on subscribe and the latest value after each Set; deliveries are conflated
// so a slow watcher only ever sees the freshest state.
type Cell[T any] struct {
	mu       sync.Mutex
	value    T
	watchers map[int]chan T
	nextID   int
}

func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial, watchers: make(map[int]chan T)}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores a new value and notifies all watchers.
func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
	for _, ch := range c.watchers {
		deliver(ch, value)
	}
}

// Update applies fn to the current value under the lock and stores the
// result, notifying watchers.
func (c *Cell[T]) Update(fn func(T) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = fn(c.value)
	for _, ch := range c.watchers {
		deliver(ch, c.value)
	}
}

// Watch returns a channel carrying the current value followed by every
// subsequent value, and a cancel function that must be called when the
// watcher is done.
func (c *Cell[T]) Watch() (<-chan T, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++

	ch := make(chan T, 1)
	ch <- c.value
	c.watchers[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers, id)
	}
	return ch, cancel
}

// deliver replaces any undelivered value so the watcher always reads the
// latest one.
func deliver[T any](ch chan T, value T) {
	select {
	case <-ch:
	default:
	}
	ch <- value
}
