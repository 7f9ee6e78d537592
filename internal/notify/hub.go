package notify

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// subscriptionBuffer is the per-connection event buffer. A subscriber that
// falls this far behind starts losing events, which is acceptable: delivery
// is fire-and-forget and clients re-fetch on reconnect.
const subscriptionBuffer = 16

// Subscription is one connected observer. Events arrive on C until Close.
type Subscription struct {
	C chan Event

	userID uuid.UUID
	hub    *Hub
	once   sync.Once
}

// Close removes the subscription from the hub registry and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.C)
	})
}

// Hub is the connection registry for live event delivery. It maps the
// broadcast scope and per-owner scopes to the currently connected
// subscriptions, with explicit add/remove tied to subscribe and close.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	byUser map[uuid.UUID]map[*Subscription]struct{}
	logger *zap.Logger
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		byUser: make(map[uuid.UUID]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers a connection for the given authenticated user. The
// owner scope is derived from the identity resolved at connection time, not
// from a client-declared value.
func (h *Hub) Subscribe(userID uuid.UUID) *Subscription {
	sub := &Subscription{
		C:      make(chan Event, subscriptionBuffer),
		userID: userID,
		hub:    h,
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	owned := h.byUser[userID]
	if owned == nil {
		owned = make(map[*Subscription]struct{})
		h.byUser[userID] = owned
	}
	owned[sub] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("Subscriber registered",
		zap.String("user_id", userID.String()),
	)

	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	delete(h.subs, sub)
	if owned, ok := h.byUser[sub.userID]; ok {
		delete(owned, sub)
		if len(owned) == 0 {
			delete(h.byUser, sub.userID)
		}
	}
	h.mu.Unlock()

	h.logger.Debug("Subscriber removed",
		zap.String("user_id", sub.userID.String()),
	)
}

// Deliver fans the event out to the matching scope. Sends never block: a
// subscriber whose buffer is full simply misses the event.
func (h *Hub) Deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	switch ev.Scope {
	case ScopeBroadcast:
		for sub := range h.subs {
			h.send(sub, ev)
		}
	case ScopeOwner:
		for sub := range h.byUser[ev.OwnerID] {
			h.send(sub, ev)
		}
	}
}

func (h *Hub) send(sub *Subscription, ev Event) {
	select {
	case sub.C <- ev:
	default:
		h.logger.Warn("Dropping event for slow subscriber",
			zap.String("event", ev.Name),
			zap.String("user_id", sub.userID.String()),
		)
	}
}

// Shutdown closes every active subscription so streaming handlers blocked on
// their event channel return promptly instead of waiting for client
// disconnects.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		sub.Close()
	}
}

// Subscribers returns the number of currently connected observers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
