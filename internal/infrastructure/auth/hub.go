package auth

import (
	"context"
	"sync"

	"github.com/carebridge/identity-core/internal/core/ports"
)

// Hub fans session events out to subscribed handlers. Handlers run
// synchronously, in subscription order, on the emitting goroutine.
type Hub struct {
	mu       sync.RWMutex
	next     uint64
	handlers map[uint64]ports.SessionHandler
	order    []uint64
}

func NewHub() *Hub {
	return &Hub{handlers: make(map[uint64]ports.SessionHandler)}
}

// OnSessionChange registers h until the returned subscription is cancelled.
func (h *Hub) OnSessionChange(handler ports.SessionHandler) ports.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.handlers[id] = handler
	h.order = append(h.order, id)
	return &subscription{hub: h, id: id}
}

// Emit delivers ev to every handler subscribed at the time of the call.
func (h *Hub) Emit(ctx context.Context, ev ports.SessionEvent) {
	h.mu.RLock()
	handlers := make([]ports.SessionHandler, 0, len(h.order))
	for _, id := range h.order {
		handlers = append(handlers, h.handlers[id])
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ctx, ev)
	}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

type subscription struct {
	hub  *Hub
	id   uint64
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() { s.hub.remove(s.id) })
}
