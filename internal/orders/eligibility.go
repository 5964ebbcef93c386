package orders

import (
	"fmt"
	"sort"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/shopspring/decimal"
)

// CanDeliver reports whether an item set meets the delivery minimum, counted
// in product-family units rather than money.
func CanDeliver(items []ItemInput) bool {
	count := map[string]int{}
	for _, it := range items {
		if it.Qty > 0 {
			count[normalizeKind(it.Kind)] += it.Qty
		}
	}
	halfChicken := count[KindMedioPollo]
	halfRib := count[KindCostillarMedio]
	switch {
	case count[KindPollo] >= 1:
		return true
	case count[KindCostillarNormal]+count[KindCostillarGrande] >= 1:
		return true
	case halfChicken >= 2, halfRib >= 2:
		return true
	case halfChicken >= 1 && halfRib >= 1:
		return true
	}
	return false
}

func ErrDeliveryMinimum() error {
	return apperr.New(apperr.CodeValidation,
		"delivery needs at least 1 pollo, 1 full rib rack, 2 medio_pollo, 2 costillar_medio, or 1 medio_pollo with 1 costillar_medio")
}

// StockError names the inventory key that cannot cover the requested demand.
type StockError struct {
	Key       string          `json:"key"`
	Available decimal.Decimal `json:"available"`
	Requested decimal.Decimal `json:"requested"`
}

func (e *StockError) Error() string {
	return fmt.Sprintf("only %s of %s available today (requested %s); adjust the quantity",
		e.Available.String(), e.Key, e.Requested.String())
}

// AsAppError exposes the shortage as a validation failure for transports.
func (e *StockError) AsAppError() *apperr.Error {
	return apperr.Wrap(apperr.CodeValidation, e, e.Error()).WithDetails(e)
}

// CheckStock compares whole-order demand against ledger levels on every key.
// Missing levels count as zero.
func CheckStock(m ConsumptionMap, items []ItemInput, levels map[string]decimal.Decimal) error {
	demand := m.Demand(items)
	keys := make([]string, 0, len(demand))
	for k := range demand {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return checkKeys(keys, demand, levels)
}

// CheckLineChange re-validates only the keys changedKind draws from, still
// with the whole order's demand on those keys.
func CheckLineChange(m ConsumptionMap, items []ItemInput, levels map[string]decimal.Decimal, changedKind string) error {
	return checkKeys(m.KeysFor(changedKind), m.Demand(items), levels)
}

func checkKeys(keys []string, demand, levels map[string]decimal.Decimal) error {
	for _, k := range keys {
		need := demand[k]
		if !need.IsPositive() {
			continue
		}
		have := levels[k]
		if need.GreaterThan(have) {
			return &StockError{Key: k, Available: have, Requested: need}
		}
	}
	return nil
}
