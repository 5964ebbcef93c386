package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockItem is one raw-material ledger entry. CurrentQty never drops below zero.
type StockItem struct {
	ID            string           `json:"id"`
	Code          string           `json:"code"`
	Name          string           `json:"name"`
	Category      string           `json:"category"`
	Unit          string           `json:"unit"`
	Step          decimal.Decimal  `json:"step"`
	CurrentQty    decimal.Decimal  `json:"currentQty"`
	MinQty        decimal.Decimal  `json:"minQty"`
	MaxQty        *decimal.Decimal `json:"maxQty,omitempty"`
	SupplierName  string           `json:"supplierName,omitempty"`
	SupplierPhone string           `json:"supplierPhone,omitempty"`
	SupplierNotes string           `json:"supplierNotes,omitempty"`
	IsActive      bool             `json:"isActive"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

func (s StockItem) LowStock() bool {
	return s.CurrentQty.LessThanOrEqual(s.MinQty)
}

// OnStep reports whether delta is a whole multiple of the item's step.
func (s StockItem) OnStep(delta decimal.Decimal) bool {
	if !s.Step.IsPositive() {
		return true
	}
	return delta.Mod(s.Step).IsZero()
}
