package com

import "sync/atomic"

// Counter is a simple thread-safe counter that in addition to its current value (Val) also
// keeps track of a cumulative Total across calls to Reset.
type Counter struct {
	val   uint64
	total uint64
}

// Add adds delta to the counter.
func (c *Counter) Add(delta uint64) {
	atomic.AddUint64(&c.val, delta)
	atomic.AddUint64(&c.total, delta)
}

// Inc increments the counter by one.
func (c *Counter) Inc() {
	c.Add(1)
}

// Val returns the counter's current value.
func (c *Counter) Val() uint64 {
	return atomic.LoadUint64(&c.val)
}

// Total returns the counter's cumulative value, i.e. the sum of all deltas ever Add-ed,
// unaffected by calls to Reset.
func (c *Counter) Total() uint64 {
	return atomic.LoadUint64(&c.total)
}

// Reset sets the counter's current value back to zero and returns the value it had before.
func (c *Counter) Reset() uint64 {
	return atomic.SwapUint64(&c.val, 0)
}
