package orders

import (
	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/shopspring/decimal"
)

const (
	// DeliverySurchargePerOrder is charged once per delivery order, never per unit.
	DeliverySurchargePerOrder int64 = 20
	TortillaPackPrice         int64 = 10
)

type PricedLine struct {
	Line      Line
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type Quote struct {
	Lines       []PricedLine    `json:"-"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Tortillas   decimal.Decimal `json:"tortillas"`
	Total       decimal.Decimal `json:"total"`
}

// Pricer resolves wire items against a catalog snapshot and totals them.
// Source decides whether cashier price overrides are honoured.
type Pricer struct {
	Source Source
}

func (p Pricer) Total(snap *catalog.Snapshot, items []ItemInput, delivery bool, tortillas int) (Quote, error) {
	if tortillas < 0 {
		return Quote{}, invalid("tortillasPacks cannot be negative")
	}
	lines := make([]Line, 0, len(items))
	for _, in := range items {
		l, err := resolve(snap, in, resolveOptions{source: p.Source, delivery: delivery})
		if err != nil {
			return Quote{}, err
		}
		lines = append(lines, l)
	}
	return Price(lines, delivery, tortillas), nil
}

// UnitPrice is the override when present, else base price plus flavor surcharge.
func UnitPrice(l Line) decimal.Decimal {
	if o := l.override(); o != nil {
		return *o
	}
	price := l.Product().Price
	if f := flavorOf(l); f != nil {
		price = price.Add(f.Price)
	}
	return price
}

// Price totals already resolved lines.
func Price(lines []Line, delivery bool, tortillas int) Quote {
	q := Quote{Lines: make([]PricedLine, 0, len(lines))}
	for _, l := range lines {
		unit := UnitPrice(l)
		total := unit.Mul(decimal.NewFromInt(int64(l.Quantity())))
		q.Lines = append(q.Lines, PricedLine{Line: l, UnitPrice: unit, LineTotal: total})
		q.Subtotal = q.Subtotal.Add(total)
	}
	if delivery {
		q.DeliveryFee = decimal.NewFromInt(DeliverySurchargePerOrder)
	}
	if tortillas > 0 {
		q.Tortillas = decimal.NewFromInt(TortillaPackPrice * int64(tortillas))
	}
	q.Total = q.Subtotal.Add(q.DeliveryFee).Add(q.Tortillas)
	return q
}

func (q Quote) lineItems() []LineItem {
	out := make([]LineItem, 0, len(q.Lines))
	for _, pl := range q.Lines {
		in := normalizedInput(pl.Line)
		out = append(out, LineItem{
			Kind:          in.Kind,
			Qty:           in.Qty,
			ProductID:     in.ProductID,
			FlavorID:      in.FlavorID,
			Flavor:        in.Flavor,
			StyleID:       in.StyleID,
			ChickenStyle:  in.ChickenStyle,
			OverridePrice: in.OverridePrice,
			UnitPrice:     pl.UnitPrice,
			LineTotal:     pl.LineTotal,
		})
	}
	return out
}

func (q Quote) inputs() []ItemInput {
	out := make([]ItemInput, 0, len(q.Lines))
	for _, pl := range q.Lines {
		out = append(out, normalizedInput(pl.Line))
	}
	return out
}
