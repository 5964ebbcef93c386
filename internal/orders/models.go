package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceCliente Source = "cliente"
	SourceCaja    Source = "caja"
)

func (s Source) Valid() bool { return s == SourceCliente || s == SourceCaja }

type Geo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Customer struct {
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	AddressNote string `json:"addressNote,omitempty"`
	Geo         *Geo   `json:"geo,omitempty"`
	DesiredAt   string `json:"desiredAt,omitempty"`
}

// ItemInput is one requested line as it arrives on the wire.
type ItemInput struct {
	Kind          string           `json:"kind" validate:"required_without=ProductID"`
	Qty           int              `json:"qty" validate:"min=1"`
	ProductID     string           `json:"productId,omitempty"`
	FlavorID      string           `json:"flavorId,omitempty"`
	Flavor        string           `json:"flavor,omitempty"`
	StyleID       string           `json:"styleId,omitempty"`
	ChickenStyle  string           `json:"chickenStyle,omitempty"`
	OverridePrice *decimal.Decimal `json:"overridePrice,omitempty"`
}

// LineItem is a persisted, priced line of an order.
type LineItem struct {
	Kind          string           `json:"kind"`
	Qty           int              `json:"qty"`
	ProductID     string           `json:"productId,omitempty"`
	FlavorID      string           `json:"flavorId,omitempty"`
	Flavor        string           `json:"flavor,omitempty"`
	StyleID       string           `json:"styleId,omitempty"`
	ChickenStyle  string           `json:"chickenStyle,omitempty"`
	OverridePrice *decimal.Decimal `json:"overridePrice,omitempty"`
	UnitPrice     decimal.Decimal  `json:"unitPrice"`
	LineTotal     decimal.Decimal  `json:"lineTotal"`
}

type Order struct {
	ID             string          `json:"id"`
	Source         Source          `json:"source"`
	Items          []LineItem      `json:"items"`
	Delivery       bool            `json:"delivery"`
	TortillasPacks int             `json:"tortillasPacks"`
	Total          decimal.Decimal `json:"total"`
	Status         Status          `json:"status"`
	Customer       Customer        `json:"customer"`
	CashierID      string          `json:"cashierId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ListFilter selects orders for the staff screens.
type ListFilter struct {
	// Day, when non-zero, restricts to orders created on that calendar day (UTC).
	Day   time.Time
	Limit int
}

const MaxListLimit = 100

func (f ListFilter) Normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// Range returns the [from, to) bounds for Day.
func (f ListFilter) Range() (from, to time.Time, ok bool) {
	if f.Day.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	y, m, d := f.Day.Date()
	from = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1), true
}
