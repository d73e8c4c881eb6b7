package oss

import "sync"

// Hub is a typed multicast event. Handlers run in registration order on the
// goroutine that calls Broadcast. No lock is held while a handler runs, so a handler
// may add or remove subscriptions, or broadcast again, without deadlocking.
type Hub[T any] struct {
	sync.Mutex
	nextID   uint64
	order    []uint64
	handlers map[uint64]func(T)
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		handlers: make(map[uint64]func(T)),
	}
}

func (h *Hub[T]) Add(fn func(T)) *Subscription {
	h.Lock()
	defer h.Unlock()
	if h.handlers == nil {
		h.handlers = make(map[uint64]func(T))
	}
	h.nextID++
	id := h.nextID
	h.handlers[id] = fn
	h.order = append(h.order, id)

	return newSubscription(func() { h.remove(id) })
}

func (h *Hub[T]) remove(id uint64) {
	h.Lock()
	defer h.Unlock()
	if _, ok := h.handlers[id]; !ok {
		return
	}
	delete(h.handlers, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i:i], h.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of live handlers.
func (h *Hub[T]) Len() int {
	h.Lock()
	defer h.Unlock()
	return len(h.handlers)
}

// Broadcast calls the handlers registered when it starts. A handler removed during
// the broadcast is skipped if it has not run yet.
func (h *Hub[T]) Broadcast(event T) {
	h.Lock()
	ids := append([]uint64(nil), h.order...)
	h.Unlock()

	for _, id := range ids {
		h.Lock()
		fn, ok := h.handlers[id]
		h.Unlock()
		if ok {
			fn(event)
		}
	}
}

// Subscription is the handle returned by Hub.Add.
type Subscription struct {
	once   sync.Once
	remove func()
}

func newSubscription(remove func()) *Subscription {
	return &Subscription{remove: remove}
}

// Unsubscribe removes the handler. Only the first call has an effect.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.remove != nil {
			s.remove()
		}
	})
}

// SubscriptionGroup owns a set of subscriptions and releases all of them on Close.
type SubscriptionGroup struct {
	sync.Mutex
	subs   []*Subscription
	closed bool
}

// Add takes ownership of s. A subscription added after Close is released immediately.
func (g *SubscriptionGroup) Add(s *Subscription) {
	if s == nil {
		return
	}
	g.Lock()
	if g.closed {
		g.Unlock()
		s.Unsubscribe()
		return
	}
	g.subs = append(g.subs, s)
	g.Unlock()
}

func (g *SubscriptionGroup) Len() int {
	g.Lock()
	defer g.Unlock()
	return len(g.subs)
}

// Close releases every owned subscription. Subsequent calls do nothing.
func (g *SubscriptionGroup) Close() {
	g.Lock()
	if g.closed {
		g.Unlock()
		return
	}
	g.closed = true
	subs := g.subs
	g.subs = nil
	g.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}
