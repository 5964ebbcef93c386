package orders_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/auth"
	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	"github.com/ariefcatur/go-realtime-pos/internal/memstore"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/stream"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []stream.Event
}

func (r *recorder) Publish(_ context.Context, ev stream.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) Events() []stream.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stream.Event(nil), r.events...)
}

// brokenOrders rejects every insert.
type brokenOrders struct {
	orders.Store
	err error
}

func (b brokenOrders) Create(context.Context, orders.Order) error { return b.err }

// flakyLedger fails writes to the listed keys.
type flakyLedger struct {
	inventory.Ledger
	fail map[string]error
}

func (l flakyLedger) AddClamped(ctx context.Context, code string, delta decimal.Decimal) (inventory.StockItem, error) {
	if err := l.fail[code]; err != nil {
		return inventory.StockItem{}, err
	}
	return l.Ledger.AddClamped(ctx, code, delta)
}

type fixture struct {
	store  *memstore.Store
	orders *memstore.OrderStore
	pub    *recorder
	svc    *orders.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.Seeded()
	locker := inventory.NewKeyLocker()
	pub := &recorder{}
	var seq atomic.Int64
	f := &fixture{store: store, orders: store.Orders(), pub: pub}
	f.svc = &orders.Service{
		Store:     f.orders,
		Catalog:   catalog.NewCache(store, nil, time.Minute, nil),
		Stock:     store,
		Consumer:  &inventory.Applier{Ledger: store, Locker: locker},
		Locker:    locker,
		Publisher: pub,
		Window:    orders.Window{OpenHour: 12, CloseHour: 18, Location: time.UTC},
		NewID: func() string {
			return "ord-" + decimal.NewFromInt(seq.Add(1)).String()
		},
	}
	return f
}

func (f *fixture) qty(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	it, err := f.store.Get(context.Background(), code)
	require.NoError(t, err)
	return it.CurrentQty
}

func deliveryCustomer() orders.Customer {
	return orders.Customer{
		Name: "Luis", Phone: "662 555 0101", AddressNote: "Reforma 12",
		Geo: &orders.Geo{Lat: 29.1, Lng: -110.9}, DesiredAt: "15:00",
	}
}

func TestCreateDeliveryOrder(t *testing.T) {
	f := newFixture(t)
	before := f.qty(t, "pollo")

	o, err := f.svc.Create(context.Background(), orders.CreateInput{
		Source:   orders.SourceCliente,
		Items:    []orders.ItemInput{{Kind: "pollo", Qty: 1}},
		Delivery: true,
		Customer: deliveryCustomer(),
	})
	require.NoError(t, err)

	assert.Equal(t, "ord-1", o.ID)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(220)))
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, "6625550101", o.Customer.Phone)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "asado", o.Items[0].ChickenStyle)

	stored, err := f.svc.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(o.Total))

	assert.True(t, f.qty(t, "pollo").Equal(before.Sub(decimal.NewFromInt(1))))

	events := f.pub.Events()
	require.Len(t, events, 1)
	ev, ok := events[0].(orders.NewOrderEvent)
	require.True(t, ok)
	assert.Equal(t, orders.EventNewOrder, ev.Type)
	assert.Equal(t, o.ID, ev.OrderID)
	assert.Equal(t, 220.0, ev.Total)
	assert.NotZero(t, ev.TS)
}

func TestCreateWalkUpSaleIsFinished(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.Create(context.Background(), orders.CreateInput{
		Source:         orders.SourceCaja,
		Items:          []orders.ItemInput{{Kind: "medio_pollo", Qty: 1}, {Kind: "alitas", Qty: 1}},
		TortillasPacks: 2,
		CashierID:      "caja-1",
	})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusDelivered, o.Status)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(300)))
	assert.True(t, f.qty(t, "pollo").Equal(decimal.NewFromFloat(29.5)))
}

func TestCreateRejectionsLeaveNoTrace(t *testing.T) {
	cases := []struct {
		name  string
		setup func(f *fixture)
		in    orders.CreateInput
		code  apperr.Code
	}{
		{
			name: "single half chicken for delivery",
			in: orders.CreateInput{Source: orders.SourceCliente, Delivery: true, Customer: deliveryCustomer(),
				Items: []orders.ItemInput{{Kind: "medio_pollo", Qty: 1}}},
			code: apperr.CodeValidation,
		},
		{
			name:  "insufficient rib stock",
			setup: func(f *fixture) { f.store.SetQty("costillar_normal", decimal.NewFromFloat(0.5)) },
			in: orders.CreateInput{Source: orders.SourceCaja,
				Items: []orders.ItemInput{{Kind: "costillar_normal", Qty: 1}}},
			code: apperr.CodeValidation,
		},
		{
			name: "no items",
			in:   orders.CreateInput{Source: orders.SourceCaja},
			code: apperr.CodeValidation,
		},
		{
			name: "missing customer",
			in: orders.CreateInput{Source: orders.SourceCliente,
				Items: []orders.ItemInput{{Kind: "pollo", Qty: 1}}},
			code: apperr.CodeValidation,
		},
		{
			name: "inactive product",
			setup: func(f *fixture) {
				off := false
				_, err := f.store.UpdateProduct(context.Background(), "pollo", catalog.ProductPatch{IsActive: &off})
				if err != nil {
					panic(err)
				}
			},
			in: orders.CreateInput{Source: orders.SourceCaja,
				Items: []orders.ItemInput{{Kind: "pollo", Qty: 1}}},
			code: apperr.CodeValidation,
		},
		{
			name:  "store failure",
			setup: func(f *fixture) { f.svc.Store = brokenOrders{Store: f.orders, err: errors.New("disk full")} },
			in: orders.CreateInput{Source: orders.SourceCaja,
				Items: []orders.ItemInput{{Kind: "pollo", Qty: 1}}},
			code: apperr.CodeInternal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.setup != nil {
				tc.setup(f)
			}
			stockBefore, err := f.store.List(context.Background())
			require.NoError(t, err)

			_, err = f.svc.Create(context.Background(), tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.code, apperr.CodeOf(err), "got %v", err)

			stockAfter, err := f.store.List(context.Background())
			require.NoError(t, err)
			assert.Equal(t, stockBefore, stockAfter)
			assert.Zero(t, f.orders.Count())
			assert.Empty(t, f.pub.Events())
		})
	}
}

func TestCreateStockErrorNamesKey(t *testing.T) {
	f := newFixture(t)
	f.store.SetQty("costillar_normal", decimal.NewFromFloat(0.5))

	_, err := f.svc.Create(context.Background(), orders.CreateInput{
		Source: orders.SourceCaja,
		Items:  []orders.ItemInput{{Kind: "costillar_normal", Qty: 1}},
	})
	var se *orders.StockError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "costillar_normal", se.Key)
	assert.True(t, se.Available.Equal(decimal.NewFromFloat(0.5)))
	assert.Contains(t, err.Error(), "costillar_normal")
}

func TestCreateOutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.svc.Window.Enforced = true
	f.svc.Now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }

	_, err := f.svc.Create(context.Background(), orders.CreateInput{
		Source: orders.SourceCaja,
		Items:  []orders.ItemInput{{Kind: "pollo", Qty: 1}},
	})
	assert.Equal(t, apperr.CodeOrderingClosed, apperr.CodeOf(err))
	assert.Zero(t, f.orders.Count())
}

// stalledPublisher never delivers; it only returns once its context ends.
type stalledPublisher struct{ calls atomic.Int64 }

func (p *stalledPublisher) Publish(ctx context.Context, _ stream.Event) error {
	p.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestStalledPublisherDoesNotHoldRequests(t *testing.T) {
	f := newFixture(t)
	pub := &stalledPublisher{}
	f.svc.Publisher = pub
	f.svc.PublishTimeout = 50 * time.Millisecond

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		o, err := f.svc.Create(ctx, orders.CreateInput{
			Source: orders.SourceCliente, Delivery: true, Customer: deliveryCustomer(),
			Items: []orders.ItemInput{{Kind: "pollo", Qty: 1}},
		})
		if err != nil {
			done <- err
			return
		}
		_, err = f.svc.UpdateStatus(context.Background(), o.ID, orders.StatusConfirmed, auth.RoleCaja)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("order requests blocked on the publisher")
	}
	assert.Equal(t, int64(2), pub.calls.Load())
	assert.Equal(t, 1, f.orders.Count())
}

func TestConsumptionFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	f.svc.Consumer = &inventory.Applier{Ledger: flakyLedger{
		Ledger: f.store,
		fail:   map[string]error{"pollo": errors.New("write timeout")},
	}}

	o, err := f.svc.Create(context.Background(), orders.CreateInput{
		Source: orders.SourceCaja,
		Items:  []orders.ItemInput{{Kind: "pollo", Qty: 1}, {Kind: "costillar_grande", Qty: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.orders.Count())
	assert.True(t, f.qty(t, "pollo").Equal(decimal.NewFromInt(30)), "failed key untouched")
	assert.True(t, f.qty(t, "costillar_grande").Equal(decimal.NewFromInt(5)), "other keys still consumed")
	assert.Len(t, f.pub.Events(), 1)
	assert.NotEmpty(t, o.ID)
}

func TestConcurrentOrdersNeverOversell(t *testing.T) {
	f := newFixture(t)
	f.store.SetQty("pollo", decimal.NewFromInt(5))

	var (
		wg       sync.WaitGroup
		accepted atomic.Int64
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), orders.CreateInput{
				Source: orders.SourceCaja,
				Items:  []orders.ItemInput{{Kind: "pollo", Qty: 1}},
			})
			if err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, accepted.Load())
	assert.True(t, f.qty(t, "pollo").IsZero())
}

func TestStockNeverNegativeUnderAdjustments(t *testing.T) {
	f := newFixture(t)
	f.store.SetQty("pollo", decimal.NewFromInt(2))
	applier := &inventory.Applier{Ledger: f.store, Locker: inventory.NewKeyLocker()}

	_, err := applier.Adjust(context.Background(), "pollo", decimal.NewFromInt(-10))
	require.NoError(t, err)
	assert.True(t, f.qty(t, "pollo").IsZero())

	_, err = f.svc.Create(context.Background(), orders.CreateInput{
		Source: orders.SourceCaja,
		Items:  []orders.ItemInput{{Kind: "medio_pollo", Qty: 1}},
	})
	assert.Error(t, err)
	assert.False(t, f.qty(t, "pollo").IsNegative())
}

func TestCheckReportsFeedback(t *testing.T) {
	f := newFixture(t)
	f.store.SetQty("pollo", decimal.NewFromInt(1))

	res, err := f.svc.Check(context.Background(), orders.CheckInput{
		Items:       []orders.ItemInput{{Kind: "pollo", Qty: 1}, {Kind: "medio_pollo", Qty: 1}},
		Delivery:    true,
		ChangedKind: "medio_pollo",
	})
	require.NoError(t, err)
	assert.True(t, res.DeliveryEligible)
	assert.True(t, res.Quote.Total.Equal(decimal.NewFromInt(320)))
	require.NotNil(t, res.Stock)
	assert.Equal(t, "pollo", res.Stock.Key)

	res, err = f.svc.Check(context.Background(), orders.CheckInput{
		Items:    []orders.ItemInput{{Kind: "medio_pollo", Qty: 1}},
		Delivery: true,
	})
	require.NoError(t, err)
	assert.False(t, res.DeliveryEligible)
	assert.Nil(t, res.Stock)
	assert.Zero(t, f.orders.Count())
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o, err := f.svc.Create(ctx, orders.CreateInput{
		Source: orders.SourceCliente, Delivery: true, Customer: deliveryCustomer(),
		Items: []orders.ItemInput{{Kind: "costillar_grande", Qty: 1}},
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, o.ID, orders.StatusConfirmed, auth.RoleNone)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	for _, next := range []orders.Status{orders.StatusConfirmed, orders.StatusOnRoute, orders.StatusDelivered} {
		o, err = f.svc.UpdateStatus(ctx, o.ID, next, auth.RoleCaja)
		require.NoError(t, err)
		assert.Equal(t, next, o.Status)
	}

	_, err = f.svc.UpdateStatus(ctx, o.ID, orders.StatusCancelled, auth.RoleAdmin)
	assert.Equal(t, apperr.CodeStateConflict, apperr.CodeOf(err))

	_, err = f.svc.UpdateStatus(ctx, "missing", orders.StatusConfirmed, auth.RoleAdmin)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	events := f.pub.Events()
	require.Len(t, events, 4)
	last, ok := events[3].(orders.OrderUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, orders.StatusDelivered, last.Status)
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t)
	clock := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)
	f.svc.Now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(context.Background(), orders.CreateInput{
			Source: orders.SourceCaja,
			Items:  []orders.ItemInput{{Kind: "lechon", Qty: 1}},
		})
		require.NoError(t, err)
	}

	list, err := f.svc.List(context.Background(), orders.ListFilter{Day: clock})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "ord-3", list[0].ID)
	assert.Equal(t, "ord-1", list[2].ID)

	list, err = f.svc.List(context.Background(), orders.ListFilter{Day: clock.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Empty(t, list)
}
