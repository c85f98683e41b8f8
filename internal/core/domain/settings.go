package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreSettings is the single store-wide configuration row, served through the settings cache.
type StoreSettings struct {
	StoreName string          `json:"storeName"`
	Currency  string          `json:"currency"`
	VATRate   decimal.Decimal `json:"vatRate"`
	Features  map[string]bool `json:"features"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func DefaultStoreSettings() StoreSettings {
	return StoreSettings{
		StoreName: "Café",
		Currency:  "THB",
		VATRate:   decimal.Zero,
		Features:  map[string]bool{},
	}
}
