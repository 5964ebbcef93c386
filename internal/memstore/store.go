// Package memstore keeps the menu, ledger and orders in process memory. It
// backs STORE_DRIVER=memory and the package tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/seed"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	products map[string]catalog.Product // by code
	flavors  []catalog.Flavor
	styles   []catalog.Style
	stock    map[string]inventory.StockItem
	orders   map[string]orders.Order
}

func New() *Store {
	return &Store{
		now:      func() time.Time { return time.Now().UTC() },
		products: map[string]catalog.Product{},
		stock:    map[string]inventory.StockItem{},
		orders:   map[string]orders.Order{},
	}
}

// Seeded returns a store holding the starting menu and stock.
func Seeded() *Store {
	s := New()
	for _, p := range seed.Products() {
		s.PutProduct(p)
	}
	s.flavors = seed.Flavors()
	s.styles = seed.Styles()
	for _, it := range seed.Stock(s.now()) {
		s.PutStock(it)
	}
	return s
}

func (s *Store) PutProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.Code] = p
}

func (s *Store) PutFlavor(f catalog.Flavor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.flavors {
		if s.flavors[i].ID == f.ID {
			s.flavors[i] = f
			return
		}
	}
	s.flavors = append(s.flavors, f)
}

func (s *Store) PutStyle(st catalog.Style) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.styles = append(s.styles, st)
}

func (s *Store) PutStock(it inventory.StockItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[it.Code] = it
}

// SetQty overwrites one ledger quantity.
func (s *Store) SetQty(code string, qty decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.stock[code]
	it.Code, it.CurrentQty, it.IsActive = code, qty, true
	s.stock[code] = it
}

// Catalog

func (s *Store) LoadSnapshot(_ context.Context) (*catalog.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	products := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].SortOrder < products[j].SortOrder })
	return catalog.NewSnapshot(products, append([]catalog.Flavor(nil), s.flavors...),
		append([]catalog.Style(nil), s.styles...), s.now()), nil
}

func (s *Store) UpdateProduct(_ context.Context, code string, patch catalog.ProductPatch) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[code]
	if !ok {
		return catalog.Product{}, apperr.Newf(apperr.CodeNotFound, "product %q not found", code)
	}
	patch.Apply(&p)
	p.UpdatedAt = s.now()
	s.products[code] = p
	return p, nil
}

// Ledger

func (s *Store) Get(_ context.Context, code string) (inventory.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.stock[code]
	if !ok {
		return inventory.StockItem{}, apperr.Newf(apperr.CodeNotFound, "inventory item %q not found", code)
	}
	return it, nil
}

func (s *Store) AddClamped(_ context.Context, code string, delta decimal.Decimal) (inventory.StockItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.stock[code]
	if !ok || !it.IsActive {
		return inventory.StockItem{}, apperr.Newf(apperr.CodeNotFound, "inventory item %q not found", code)
	}
	it.CurrentQty = decimal.Max(it.CurrentQty.Add(delta), decimal.Zero)
	it.UpdatedAt = s.now()
	s.stock[code] = it
	return it, nil
}

func (s *Store) Levels(_ context.Context, keys []string) (map[string]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]decimal.Decimal, len(keys))
	for _, k := range keys {
		if it, ok := s.stock[k]; ok && it.IsActive {
			out[k] = it.CurrentQty
		}
	}
	return out, nil
}

func (s *Store) List(_ context.Context) ([]inventory.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]inventory.StockItem, 0, len(s.stock))
	for _, it := range s.stock {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Orders returns the order store view; the ledger and order stores share
// method names, so they live on separate types.
func (s *Store) Orders() *OrderStore { return &OrderStore{s: s} }

type OrderStore struct{ s *Store }

func (o *OrderStore) Create(_ context.Context, ord orders.Order) error {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.orders[ord.ID]; dup {
		return apperr.Newf(apperr.CodeStateConflict, "order %q already exists", ord.ID)
	}
	ord.Items = append([]orders.LineItem(nil), ord.Items...)
	s.orders[ord.ID] = ord
	return nil
}

func (o *OrderStore) Get(_ context.Context, id string) (orders.Order, error) {
	s := o.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	ord, ok := s.orders[id]
	if !ok {
		return orders.Order{}, apperr.Newf(apperr.CodeNotFound, "order %q not found", id)
	}
	return ord, nil
}

func (o *OrderStore) List(_ context.Context, f orders.ListFilter) ([]orders.Order, error) {
	s := o.s
	f = f.Normalized()
	from, to, ranged := f.Range()

	s.mu.RLock()
	out := make([]orders.Order, 0, len(s.orders))
	for _, ord := range s.orders {
		if ranged && (ord.CreatedAt.Before(from) || !ord.CreatedAt.Before(to)) {
			continue
		}
		out = append(out, ord)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (o *OrderStore) Count() int {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()
	return len(o.s.orders)
}

func (o *OrderStore) UpdateStatus(_ context.Context, id string, from, to orders.Status) (orders.Order, error) {
	s := o.s
	s.mu.Lock()
	defer s.mu.Unlock()
	ord, ok := s.orders[id]
	if !ok {
		return orders.Order{}, apperr.Newf(apperr.CodeNotFound, "order %q not found", id)
	}
	if ord.Status != from {
		return orders.Order{}, apperr.New(apperr.CodeStateConflict, "order status changed concurrently; reload and retry")
	}
	ord.Status = to
	ord.UpdatedAt = s.now()
	s.orders[id] = ord
	return ord, nil
}
