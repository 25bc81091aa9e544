package product

import (
	"fmt"

	"github.com/agura-market/agura_market/internal/apperr"
)

// Reference is the read-only projection of a listing needed to settle a purchase.
type Reference struct {
	ID      string `json:"id"`
	Price   int64  `json:"price"`
	OwnerID string `json:"ownerId"`
}

// ErrNotFound is returned when no listing exists for the requested id.
var ErrNotFound = fmt.Errorf("product %w", apperr.ErrNotFound)
