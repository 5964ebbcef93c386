package orders

import "github.com/ariefcatur/go-realtime-pos/internal/apperr"

type Status string

const (
	StatusPending   Status = "pendiente"
	StatusConfirmed Status = "confirmado"
	StatusOnRoute   Status = "en_ruta"
	StatusDelivered Status = "entregado"
	StatusCancelled Status = "cancelado"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusDelivered: true, StatusCancelled: true},
	StatusConfirmed: {StatusOnRoute: true, StatusDelivered: true, StatusCancelled: true},
	StatusOnRoute:   {StatusDelivered: true, StatusCancelled: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// InitialStatus: walk-up cashier sales are finished on creation, everything else waits.
func InitialStatus(src Source, delivery bool) Status {
	if src == SourceCaja && !delivery {
		return StatusDelivered
	}
	return StatusPending
}

// checkTransition applies the table plus the delivery-dependent rules:
// only delivery orders go out on a route, and they must pass through it.
func checkTransition(o Order, to Status) error {
	if !to.Valid() {
		return apperr.Newf(apperr.CodeValidation, "unknown status %q", to)
	}
	if !CanTransition(o.Status, to) {
		return apperr.Newf(apperr.CodeStateConflict, "cannot move order from %s to %s", o.Status, to).
			WithDetails(map[string]any{"from": o.Status, "to": to})
	}
	if to == StatusOnRoute && !o.Delivery {
		return apperr.New(apperr.CodeStateConflict, "pickup orders are never en_ruta")
	}
	if to == StatusDelivered && o.Delivery && o.Status != StatusOnRoute {
		return apperr.New(apperr.CodeStateConflict, "delivery orders must be en_ruta before entregado")
	}
	return nil
}
