package orders

import "time"

const (
	EventNewOrder     = "nueva_orden"
	EventOrderUpdated = "orden_actualizada"
)

type NewOrderEvent struct {
	Type    string  `json:"type"`
	OrderID string  `json:"orderId"`
	Total   float64 `json:"total"`
	TS      int64   `json:"ts"`
}

func (e NewOrderEvent) EventType() string { return EventNewOrder }

type OrderUpdatedEvent struct {
	Type    string `json:"type"`
	OrderID string `json:"orderId"`
	Status  Status `json:"status"`
	TS      int64  `json:"ts"`
}

func (e OrderUpdatedEvent) EventType() string { return EventOrderUpdated }

func newOrderEvent(o Order, at time.Time) NewOrderEvent {
	return NewOrderEvent{Type: EventNewOrder, OrderID: o.ID, Total: o.Total.InexactFloat64(), TS: at.UnixMilli()}
}

func orderUpdatedEvent(o Order, at time.Time) OrderUpdatedEvent {
	return OrderUpdatedEvent{Type: EventOrderUpdated, OrderID: o.ID, Status: o.Status, TS: at.UnixMilli()}
}

// Key groups every event of one order on the same relay partition.
func (e NewOrderEvent) Key() string { return e.OrderID }

func (e OrderUpdatedEvent) Key() string { return e.OrderID }
