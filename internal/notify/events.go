package notify

import (
	"encoding/json"
	"time"

	"orderdesk/internal/domain"

	"github.com/google/uuid"
)

// Lifecycle event names, as delivered to connected clients.
const (
	EventOrderCreated   = "orderCreated"
	EventOrderUpdated   = "orderUpdated"
	EventOrderCanceled  = "orderCanceled"
	EventMyOrderUpdated = "myOrderUpdated"
)

// Scope controls which connections receive an event.
type Scope string

const (
	// ScopeBroadcast delivers to every connected observer.
	ScopeBroadcast Scope = "broadcast"
	// ScopeOwner delivers only to connections of the owning user.
	ScopeOwner Scope = "owner"
)

// Event is one order lifecycle notification. The payload is always the full
// current order including its lines. Delivery is at-most-once with no
// acknowledgement or replay; clients reconcile by re-fetching on reconnect.
type Event struct {
	Name    string        `json:"name"`
	Scope   Scope         `json:"scope"`
	OwnerID uuid.UUID     `json:"owner_id"`
	Order   *domain.Order `json:"order"`
}

// Broadcast builds a broadcast-scoped event for the given order.
func Broadcast(name string, order *domain.Order) Event {
	return Event{Name: name, Scope: ScopeBroadcast, OwnerID: order.UserID, Order: order}
}

// ToOwner builds an owner-scoped event for the order's owning user.
func ToOwner(name string, order *domain.Order) Event {
	return Event{Name: name, Scope: ScopeOwner, OwnerID: order.UserID, Order: order}
}

// Envelope is the versioned wire form mirrored to Kafka for downstream
// consumers.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}
