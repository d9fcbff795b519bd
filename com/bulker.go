package com

import (
	"context"
	"time"
)

// bulkTimeout is the maximum time a chunk may sit pending before Bulk flushes it,
// even if count items have not yet been collected.
const bulkTimeout = 256 * time.Millisecond

// BulkChunkSplitPolicy decides whether item must start a new chunk, i.e. if not already
// done due to the Bulk count parameter.
type BulkChunkSplitPolicy[T any] func(item T) bool

// BulkChunkSplitPolicyFactory produces a new BulkChunkSplitPolicy for (and at the begin of) each new chunk.
type BulkChunkSplitPolicyFactory[T any] func() BulkChunkSplitPolicy[T]

// NeverSplit returns a BulkChunkSplitPolicy which never does that.
func NeverSplit[T any]() BulkChunkSplitPolicy[T] {
	return func(T) bool {
		return false
	}
}

// Bulk reads single values from ch, packs them into chunks of size count (or less, if
// splitPolicyFactory forces an early split, or if ch wasn't able to provide another value within a
// short period of time) and streams those chunks through the returned channel. If ctx is canceled,
// Bulk stops immediately; a partially filled chunk already in flight may still be delivered.
func Bulk[T any](ctx context.Context, ch <-chan T, count int, splitPolicyFactory BulkChunkSplitPolicyFactory[T]) <-chan []T {
	if count < 1 {
		count = 1
	}

	out := make(chan []T)

	go func() {
		defer close(out)

		var pending []T
		var splitPolicy BulkChunkSplitPolicy[T]
		var timer *time.Timer
		var timerC <-chan time.Time

		stopTimer := func() {
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}

			timerC = nil
		}

		startTimer := func() {
			if timer == nil {
				timer = time.NewTimer(bulkTimeout)
			} else {
				timer.Reset(bulkTimeout)
			}

			timerC = timer.C
		}

		flush := func() bool {
			if len(pending) == 0 {
				return true
			}

			select {
			case out <- pending:
				pending = nil
				return true
			case <-ctx.Done():
				return false
			}
		}

		defer stopTimer()

		for {
			if splitPolicy == nil {
				splitPolicy = splitPolicyFactory()
			}

			select {
			case v, ok := <-ch:
				if !ok {
					flush()
					return
				}

				if len(pending) > 0 && splitPolicy(v) {
					if !flush() {
						return
					}

					splitPolicy = splitPolicyFactory()
				}

				pending = append(pending, v)
				if len(pending) == 1 {
					startTimer()
				}

				if len(pending) >= count {
					stopTimer()

					if !flush() {
						return
					}

					splitPolicy = nil
				}
			case <-timerC:
				stopTimer()

				if !flush() {
					return
				}

				splitPolicy = nil
			case <-ctx.Done():
				if len(pending) > 0 {
					select {
					case out <- pending:
					default:
					}
				}

				return
			}
		}
	}()

	return out
}
