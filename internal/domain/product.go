package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a product in the catalog. Order lines copy the price
// at creation time, so later edits never change existing orders.
type Product struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Price     float64   `json:"price" db:"price"`
	Category  string    `json:"category,omitempty" db:"category"`
	Available bool      `json:"available" db:"available"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
