package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusNew       Status = "new"
	StatusConfirmed Status = "confirmed"
	StatusPrepared  Status = "prepared"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

var knownStatuses = map[Status]bool{
	StatusNew:       true,
	StatusConfirmed: true,
	StatusPrepared:  true,
	StatusReady:     true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// ParseStatus converts a raw string into a Status, reporting whether the
// value is one of the recognized lifecycle states.
func ParseStatus(s string) (Status, bool) {
	status := Status(s)
	return status, knownStatuses[status]
}

// Terminal reports whether the status permits no further transitions.
// The cancel path enforces this; the admin status override does not.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Order is a customer order. Total is computed server-side at creation from
// the line snapshots and is never recomputed afterward.
type Order struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Customer  string       `json:"customer" db:"customer"`
	Contact   string       `json:"contact" db:"contact"`
	Status    Status       `json:"status" db:"status"`
	Total     float64      `json:"total" db:"total"`
	UserID    uuid.UUID    `json:"user_id" db:"user_id"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
	Items     []OrderLine  `json:"items"`
	User      *UserSummary `json:"user,omitempty"`
}

// OrderLine is a single position of an order. Price is a snapshot of the
// product price at order creation, not a live reference.
type OrderLine struct {
	ID        uuid.UUID `json:"id" db:"id"`
	OrderID   uuid.UUID `json:"order_id" db:"order_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Price     float64   `json:"price" db:"price"`
	Note      string    `json:"note,omitempty" db:"note"`
	Product   *Product  `json:"product,omitempty"`
}

// UserSummary is the owning-user projection attached to admin order listings.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}
