package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	Active    bool
	Version   int // optimistic locking for admin stock edits
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasStock reports whether quantity units can be taken without going negative.
func (p Product) HasStock(quantity int) bool {
	return p.Stock >= quantity
}
