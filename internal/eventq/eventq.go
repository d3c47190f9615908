// Package eventq provides non-blocking channel send helpers so a slow
// consumer can never stall a producer.
package eventq

import (
	"context"
	"sync/atomic"
)

// Offer performs a non-blocking send.
// It returns true when the value was sent and false when the channel is full.
func Offer[T any](ch chan<- T, value T) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case ch <- value:
		return true
	default:
		return false
	}
}

// OfferContext performs a non-blocking send that also respects context cancellation.
// It returns false if ctx is already done or if the channel is full.
func OfferContext[T any](ctx context.Context, ch chan<- T, value T) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	return Offer(ch, value)
}

// Drops is a concurrency-safe counter for messages discarded by OfferCounted.
type Drops struct {
	n atomic.Uint64
}

// Load returns the number of drops recorded so far.
func (d *Drops) Load() uint64 { return d.n.Load() }

// OfferCounted performs a non-blocking send, bumping drops when the value
// could not be delivered. Returns true when the value was sent.
func OfferCounted[T any](ch chan<- T, value T, drops *Drops) bool {
	if Offer(ch, value) {
		return true
	}
	drops.n.Add(1)
	return false
}
