package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID         string
	Name       string
	Phone      string
	Points     int
	TotalSpent decimal.Decimal
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
