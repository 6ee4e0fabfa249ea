// Package ack lets an operator release instances that are holding for a
// manual purchase.
package ack

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotWaiting  = errors.New("ack: instance is not waiting")
	ErrNoneWaiting = errors.New("ack: no instance is waiting")
)

type Pending struct {
	Instance string
	Since    time.Time
}

type waiter struct {
	since time.Time
	done  chan struct{}
}

// Hub tracks instances blocked in Await. It is safe for concurrent use.
type Hub struct {
	mu      sync.Mutex
	waiting map[string]*waiter
	notify  chan struct{}
	now     func() time.Time
}

func NewHub() *Hub {
	return &Hub{waiting: map[string]*waiter{}, notify: make(chan struct{}, 1), now: time.Now}
}

// Await blocks until instance is acknowledged or ctx ends. A second Await
// for the same instance releases the earlier one.
func (h *Hub) Await(ctx context.Context, instance string) error {
	w := &waiter{since: h.now(), done: make(chan struct{})}

	h.mu.Lock()
	if old, ok := h.waiting[instance]; ok {
		close(old.done)
	}
	h.waiting[instance] = w
	h.mu.Unlock()
	h.signal()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		h.mu.Lock()
		if h.waiting[instance] == w {
			delete(h.waiting, instance)
		}
		h.mu.Unlock()
		return ctx.Err()
	}
}

func (h *Hub) Ack(instance string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.waiting[instance]
	if !ok {
		return ErrNotWaiting
	}
	delete(h.waiting, instance)
	close(w.done)
	return nil
}

// AckOldest releases whichever instance has waited longest.
func (h *Hub) AckOldest() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var (
		id     string
		oldest *waiter
	)
	for k, w := range h.waiting {
		if oldest == nil || w.since.Before(oldest.since) || (w.since.Equal(oldest.since) && k < id) {
			id, oldest = k, w
		}
	}
	if oldest == nil {
		return "", ErrNoneWaiting
	}
	delete(h.waiting, id)
	close(oldest.done)
	return id, nil
}

// Pending lists waiting instances, oldest first.
func (h *Hub) Pending() []Pending {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Pending, 0, len(h.waiting))
	for k, w := range h.waiting {
		out = append(out, Pending{Instance: k, Since: w.since})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Since.Equal(out[j].Since) {
			return out[i].Instance < out[j].Instance
		}
		return out[i].Since.Before(out[j].Since)
	})
	return out
}

// Changed fires (coalesced) whenever a new instance starts waiting.
func (h *Hub) Changed() <-chan struct{} { return h.notify }

func (h *Hub) signal() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}
