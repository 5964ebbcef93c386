package orders

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/auth"
	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/metrics"
	"github.com/ariefcatur/go-realtime-pos/internal/stream"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, error)
	// UpdateStatus moves id from one status to another only if it is still at from.
	UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error)
}

type CatalogSource interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

type StockReader interface {
	Levels(ctx context.Context, keys []string) (map[string]decimal.Decimal, error)
}

type StockConsumer interface {
	Apply(ctx context.Context, demand map[string]decimal.Decimal) error
}

type Locker interface {
	Lock(keys ...string) func()
}

// Service owns order acceptance and the status lifecycle.
type Service struct {
	Store     Store
	Catalog   CatalogSource
	Stock     StockReader
	Consumer  StockConsumer
	Locker    Locker
	Publisher stream.Publisher
	// PublishTimeout bounds each event publish; 2s when zero.
	PublishTimeout time.Duration
	Consumption    ConsumptionMap
	Window         Window
	Log            *logger.Logger
	Metrics        *metrics.Metrics
	Now            func() time.Time
	NewID          func() string
}

type CreateInput struct {
	Source         Source      `json:"source" validate:"required,oneof=cliente caja"`
	Items          []ItemInput `json:"items" validate:"required,min=1,dive"`
	Delivery       bool        `json:"delivery"`
	TortillasPacks int         `json:"tortillasPacks" validate:"min=0"`
	Customer       Customer    `json:"customer"`
	CashierID      string      `json:"-"`
}

type CheckInput struct {
	Source         Source      `json:"source" validate:"omitempty,oneof=cliente caja"`
	Items          []ItemInput `json:"items" validate:"required,min=1,dive"`
	Delivery       bool        `json:"delivery"`
	TortillasPacks int         `json:"tortillasPacks" validate:"min=0"`
	// ChangedKind limits the stock check to the keys this kind draws from.
	ChangedKind string `json:"changedKind,omitempty"`
}

type CheckResult struct {
	Open             bool        `json:"open"`
	DeliveryEligible bool        `json:"deliveryEligible"`
	Quote            Quote       `json:"quote"`
	Stock            *StockError `json:"stock,omitempty"`
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Service) log() *logger.Logger {
	if s.Log == nil {
		return logger.Nop()
	}
	return s.Log
}

func (s *Service) consumption() ConsumptionMap {
	if s.Consumption == nil {
		return DefaultConsumption
	}
	return s.Consumption
}

func (s *Service) newID() string {
	if s.NewID == nil {
		return uuid.NewString()
	}
	return s.NewID()
}

func (s *Service) lock(keys []string) func() {
	if s.Locker == nil || len(keys) == 0 {
		return func() {}
	}
	return s.Locker.Lock(keys...)
}

func (s *Service) snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	snap, err := s.Catalog.Snapshot(ctx)
	if err != nil {
		if apperr.As(err) != nil {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.CodeDependency, err, "catalog unavailable")
	}
	return snap, nil
}

func (s *Service) levels(ctx context.Context, keys []string) (map[string]decimal.Decimal, error) {
	if len(keys) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	lv, err := s.Stock.Levels(ctx, keys)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDependency, err, "inventory unavailable")
	}
	return lv, nil
}

func stockFailure(err error) error {
	var se *StockError
	if errors.As(err, &se) {
		return se.AsAppError()
	}
	return err
}

// Create validates, prices, persists and announces a new order. Nothing is
// written unless every check passes. Ledger consumption after the insert is
// best effort and never undoes the order.
func (s *Service) Create(ctx context.Context, in CreateInput) (order Order, err error) {
	start := s.now()
	defer func() {
		if err != nil {
			s.Metrics.OrderRejected(string(apperr.CodeOf(err)))
			return
		}
		s.Metrics.OrderCreated(string(order.Source))
		s.Metrics.ObserveCreate(s.now().Sub(start))
	}()

	if !in.Source.Valid() {
		return Order{}, invalid("source must be cliente or caja")
	}
	if len(in.Items) == 0 {
		return Order{}, invalid("order has no items")
	}
	if err := s.Window.Check(start); err != nil {
		return Order{}, err
	}
	if err := checkCustomer(in.Source, in.Delivery, &in.Customer); err != nil {
		return Order{}, err
	}

	snap, err := s.snapshot(ctx)
	if err != nil {
		return Order{}, err
	}
	quote, err := Pricer{Source: in.Source}.Total(snap, in.Items, in.Delivery, in.TortillasPacks)
	if err != nil {
		return Order{}, err
	}
	items := quote.inputs()
	if in.Delivery && !CanDeliver(items) {
		return Order{}, ErrDeliveryMinimum()
	}

	cm := s.consumption()
	demand := cm.Demand(items)
	keys := make([]string, 0, len(demand))
	for k := range demand {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	order, err = s.accept(ctx, in, quote, cm, items, demand, keys)
	if err != nil {
		return Order{}, err
	}

	ctx = s.log().WithFields(ctx, map[string]any{"order_id": order.ID, "source": order.Source})
	s.log().Info(ctx, "order accepted")
	s.publish(ctx, newOrderEvent(order, s.now()))
	return order, nil
}

// publish sends ev after the order is committed. It outlives the request but
// not PublishTimeout; failures are only logged.
func (s *Service) publish(ctx context.Context, ev stream.Event) {
	if s.Publisher == nil {
		return
	}
	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Publisher.Publish(pctx, ev); err != nil {
		s.log().Warn(s.log().WithField(ctx, "event", ev.EventType()), "event publish failed", err)
	}
}

// accept runs check, insert and consumption while holding the order's stock keys.
func (s *Service) accept(ctx context.Context, in CreateInput, quote Quote, cm ConsumptionMap,
	items []ItemInput, demand map[string]decimal.Decimal, keys []string) (Order, error) {
	unlock := s.lock(keys)
	defer unlock()

	levels, err := s.levels(ctx, keys)
	if err != nil {
		return Order{}, err
	}
	if err := CheckStock(cm, items, levels); err != nil {
		return Order{}, stockFailure(err)
	}

	now := s.now()
	order := Order{
		ID:             s.newID(),
		Source:         in.Source,
		Items:          quote.lineItems(),
		Delivery:       in.Delivery,
		TortillasPacks: in.TortillasPacks,
		Total:          quote.Total,
		Status:         InitialStatus(in.Source, in.Delivery),
		Customer:       in.Customer,
		CashierID:      strings.TrimSpace(in.CashierID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Store.Create(ctx, order); err != nil {
		if apperr.As(err) != nil {
			return Order{}, err
		}
		return Order{}, apperr.Wrap(apperr.CodeInternal, err, "could not save order")
	}

	if s.Consumer != nil && len(demand) > 0 {
		if err := s.Consumer.Apply(context.WithoutCancel(ctx), demand); err != nil {
			s.log().Error(s.log().WithField(ctx, "order_id", order.ID), "inventory consumption incomplete", err)
		}
	}
	return order, nil
}

// Check answers the ordering form's live questions without writing anything.
func (s *Service) Check(ctx context.Context, in CheckInput) (CheckResult, error) {
	src := in.Source
	if src == "" {
		src = SourceCliente
	}
	if !src.Valid() {
		return CheckResult{}, invalid("source must be cliente or caja")
	}
	snap, err := s.snapshot(ctx)
	if err != nil {
		return CheckResult{}, err
	}
	quote, err := Pricer{Source: src}.Total(snap, in.Items, in.Delivery, in.TortillasPacks)
	if err != nil {
		return CheckResult{}, err
	}
	items := quote.inputs()
	cm := s.consumption()

	res := CheckResult{
		Open:             s.Window.IsOpen(s.now()),
		DeliveryEligible: CanDeliver(items),
		Quote:            quote,
	}

	var keys []string
	if in.ChangedKind != "" {
		keys = cm.KeysFor(in.ChangedKind)
	} else {
		for k := range cm.Demand(items) {
			keys = append(keys, k)
		}
	}
	levels, err := s.levels(ctx, keys)
	if err != nil {
		return CheckResult{}, err
	}

	var stockErr error
	if in.ChangedKind != "" {
		stockErr = CheckLineChange(cm, items, levels, in.ChangedKind)
	} else {
		stockErr = CheckStock(cm, items, levels)
	}
	var se *StockError
	if errors.As(stockErr, &se) {
		res.Stock = se
	}
	return res, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	return s.Store.List(ctx, f.Normalized())
}

// UpdateStatus is reserved for staff. A concurrent change between the read and
// the write surfaces as a state conflict.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status, role auth.Role) (Order, error) {
	if !role.IsStaff() {
		return Order{}, apperr.New(apperr.CodeForbidden, "only staff can change order status")
	}
	cur, err := s.Store.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := checkTransition(cur, next); err != nil {
		return Order{}, err
	}
	updated, err := s.Store.UpdateStatus(ctx, id, cur.Status, next)
	if err != nil {
		return Order{}, err
	}

	ctx = s.log().WithFields(ctx, map[string]any{"order_id": id, "from": cur.Status, "to": next})
	s.log().Info(ctx, "order status changed")
	s.publish(ctx, orderUpdatedEvent(updated, s.now()))
	return updated, nil
}
