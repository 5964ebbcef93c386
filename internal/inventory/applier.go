package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Applier writes order consumption and admin adjustments to the ledger.
type Applier struct {
	Ledger  Ledger
	Locker  *KeyLocker
	Log     *logger.Logger
	Metrics *metrics.Metrics
}

func (a *Applier) log() *logger.Logger {
	if a.Log == nil {
		return logger.Nop()
	}
	return a.Log
}

// Apply decrements every key of demand independently. A failing key does not
// stop the others; all failures come back combined. Unknown or inactive keys
// are skipped. Callers serializing on the keys must already hold their locks.
func (a *Applier) Apply(ctx context.Context, demand map[string]decimal.Decimal) error {
	keys := make([]string, 0, len(demand))
	for k, v := range demand {
		if v.IsPositive() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var errs error
	for _, k := range keys {
		_, err := a.Ledger.AddClamped(ctx, k, demand[k].Neg())
		switch {
		case err == nil:
		case apperr.Is(err, apperr.CodeNotFound):
			a.log().Warn(a.log().WithField(ctx, "key", k), "consumption skipped for unknown stock item", nil)
		default:
			a.Metrics.ConsumptionFailed(k)
			errs = multierr.Append(errs, fmt.Errorf("consume %s: %w", k, err))
		}
	}
	return errs
}

// Adjust applies an admin stock correction. delta must respect the item's step.
func (a *Applier) Adjust(ctx context.Context, code string, delta decimal.Decimal) (StockItem, error) {
	if delta.IsZero() {
		return StockItem{}, apperr.New(apperr.CodeValidation, "delta must not be zero")
	}
	if a.Locker != nil {
		unlock := a.Locker.Lock(code)
		defer unlock()
	}

	item, err := a.Ledger.Get(ctx, code)
	if err != nil {
		return StockItem{}, err
	}
	if !item.IsActive {
		return StockItem{}, apperr.Newf(apperr.CodeValidation, "inventory item %q is inactive", code)
	}
	if !item.OnStep(delta) {
		return StockItem{}, apperr.Newf(apperr.CodeValidation, "%s moves in steps of %s %s", item.Name, item.Step, item.Unit).
			WithDetails(map[string]any{"step": item.Step.String(), "delta": delta.String()})
	}
	return a.Ledger.AddClamped(ctx, code, delta)
}
