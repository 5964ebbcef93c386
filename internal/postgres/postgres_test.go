package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openDB connects to POSTGRES_DSN and prepares the schema. Tests touching the
// database are skipped when it is unset.
func openDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, postgres.EnsureSchema(ctx, db))
	// running twice must not fail on the seeded rows
	require.NoError(t, postgres.EnsureSchema(ctx, db))
	return db
}

// stockItem inserts a throwaway ledger row and removes it afterwards.
func stockItem(t *testing.T, db *pgxpool.Pool, qty string) string {
	t.Helper()
	code := "test_" + uuid.NewString()[:8]
	_, err := db.Exec(context.Background(),
		`INSERT INTO stock_items(code, name, step, current_qty) VALUES ($1, $1, 0.5, $2)`,
		code, decimal.RequireFromString(qty))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = db.Exec(context.Background(), `DELETE FROM stock_items WHERE code=$1`, code)
	})
	return code
}

func TestStockDecrementClampsAtZero(t *testing.T) {
	db := openDB(t)
	repo := &inventory.Repo{DB: db}
	ctx := context.Background()
	code := stockItem(t, db, "3")

	it, err := repo.AddClamped(ctx, code, decimal.NewFromFloat(-1.5))
	require.NoError(t, err)
	assert.True(t, it.CurrentQty.Equal(decimal.NewFromFloat(1.5)))

	it, err = repo.AddClamped(ctx, code, decimal.NewFromInt(-10))
	require.NoError(t, err)
	assert.True(t, it.CurrentQty.IsZero())

	_, err = repo.AddClamped(ctx, "missing_"+code, decimal.NewFromInt(-1))
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestConcurrentDecrementsNeverGoNegative(t *testing.T) {
	db := openDB(t)
	repo := &inventory.Repo{DB: db}
	code := stockItem(t, db, "5")

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.AddClamped(context.Background(), code, decimal.NewFromInt(-1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	levels, err := repo.Levels(context.Background(), []string{code, "missing_" + code})
	require.NoError(t, err)
	assert.True(t, levels[code].IsZero())
	_, ok := levels["missing_"+code]
	assert.False(t, ok)
}

func TestOrderRoundTripAndStatusSwap(t *testing.T) {
	db := openDB(t)
	repo := &orders.Repo{DB: db}
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	override := decimal.NewFromInt(150)

	o := orders.Order{
		ID:       "test-" + uuid.NewString(),
		Source:   orders.SourceCaja,
		Delivery: true,
		Total:    decimal.NewFromInt(390),
		Status:   orders.StatusPending,
		Customer: orders.Customer{
			Name: "Ana", Phone: "5512345678", AddressNote: "Calle 5",
			Geo: &orders.Geo{Lat: 19.4, Lng: -99.1}, DesiredAt: "14:00",
		},
		CashierID: "caja-1",
		Items: []orders.LineItem{
			{Kind: "pollo", Qty: 1, ProductID: "prd-pollo", StyleID: "sty-asado", ChickenStyle: "asado",
				UnitPrice: decimal.NewFromInt(200), LineTotal: decimal.NewFromInt(200)},
			{Kind: "medio_pollo", Qty: 1, ProductID: "prd-medio_pollo", OverridePrice: &override,
				UnitPrice: override, LineTotal: override},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.Create(ctx, o))
	t.Cleanup(func() { _, _ = db.Exec(context.Background(), `DELETE FROM orders WHERE id=$1`, o.ID) })

	got, err := repo.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Total.Equal(o.Total))
	assert.Equal(t, o.Customer, got.Customer)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "asado", got.Items[0].ChickenStyle)
	require.NotNil(t, got.Items[1].OverridePrice)
	assert.True(t, got.Items[1].OverridePrice.Equal(override))

	list, err := repo.List(ctx, orders.ListFilter{Day: now, Limit: 100})
	require.NoError(t, err)
	var found bool
	for _, l := range list {
		found = found || l.ID == o.ID
	}
	assert.True(t, found)

	updated, err := repo.UpdateStatus(ctx, o.ID, orders.StatusPending, orders.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, updated.Status)

	// a writer holding a stale status loses
	_, err = repo.UpdateStatus(ctx, o.ID, orders.StatusPending, orders.StatusCancelled)
	assert.Equal(t, apperr.CodeStateConflict, apperr.CodeOf(err))

	_, err = repo.UpdateStatus(ctx, "missing-"+o.ID, orders.StatusPending, orders.StatusConfirmed)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestCatalogLoadsSeededMenu(t *testing.T) {
	db := openDB(t)
	repo := &catalog.Repo{DB: db}
	ctx := context.Background()

	snap, err := repo.LoadSnapshot(ctx)
	require.NoError(t, err)
	pollo, ok := snap.Product("pollo")
	require.True(t, ok)
	assert.True(t, pollo.HasStyles())
	assert.True(t, pollo.HasFlavors())

	// writing back the stored sort order exercises the patch path without changing data
	sort := pollo.SortOrder
	p, err := repo.UpdateProduct(ctx, "pollo", catalog.ProductPatch{SortOrder: &sort})
	require.NoError(t, err)
	assert.Equal(t, pollo.ID, p.ID)
	assert.ElementsMatch(t, pollo.StyleIDs, p.StyleIDs)

	_, err = repo.UpdateProduct(ctx, "no_such_product", catalog.ProductPatch{SortOrder: &sort})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
