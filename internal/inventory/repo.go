package inventory

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Ledger is the storage contract of the raw-material stock.
type Ledger interface {
	Get(ctx context.Context, code string) (StockItem, error)
	// AddClamped applies delta to an active item, flooring the result at zero.
	AddClamped(ctx context.Context, code string, delta decimal.Decimal) (StockItem, error)
	// Levels returns current quantities of the active items among keys.
	Levels(ctx context.Context, keys []string) (map[string]decimal.Decimal, error)
	List(ctx context.Context) ([]StockItem, error)
}

type Repo struct{ DB *pgxpool.Pool }

const stockColumns = `id, code, name, category, unit, step, current_qty, min_qty, max_qty,
	supplier_name, supplier_phone, supplier_notes, is_active, updated_at`

func scanStock(row pgx.Row) (StockItem, error) {
	var (
		s      StockItem
		maxQty decimal.NullDecimal
	)
	err := row.Scan(&s.ID, &s.Code, &s.Name, &s.Category, &s.Unit, &s.Step, &s.CurrentQty, &s.MinQty, &maxQty,
		&s.SupplierName, &s.SupplierPhone, &s.SupplierNotes, &s.IsActive, &s.UpdatedAt)
	if err != nil {
		return StockItem{}, err
	}
	if maxQty.Valid {
		v := maxQty.Decimal
		s.MaxQty = &v
	}
	return s, nil
}

func notFound(code string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Newf(apperr.CodeNotFound, "inventory item %q not found", code)
	}
	return err
}

func (r *Repo) Get(ctx context.Context, code string) (StockItem, error) {
	s, err := scanStock(r.DB.QueryRow(ctx, `SELECT `+stockColumns+` FROM stock_items WHERE code=$1`, code))
	if err != nil {
		return StockItem{}, notFound(code, err)
	}
	return s, nil
}

// AddClamped is a single statement so concurrent writers can never drive the
// quantity negative.
func (r *Repo) AddClamped(ctx context.Context, code string, delta decimal.Decimal) (StockItem, error) {
	s, err := scanStock(r.DB.QueryRow(ctx, `
		UPDATE stock_items
		SET current_qty = GREATEST(current_qty + $2, 0), updated_at = now()
		WHERE code = $1 AND is_active
		RETURNING `+stockColumns, code, delta))
	if err != nil {
		return StockItem{}, notFound(code, err)
	}
	return s, nil
}

func (r *Repo) Levels(ctx context.Context, keys []string) (map[string]decimal.Decimal, error) {
	rows, err := r.DB.Query(ctx, `SELECT code, current_qty FROM stock_items WHERE is_active AND code = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]decimal.Decimal, len(keys))
	for rows.Next() {
		var (
			code string
			qty  decimal.Decimal
		)
		if err := rows.Scan(&code, &qty); err != nil {
			return nil, err
		}
		out[code] = qty
	}
	return out, rows.Err()
}

func (r *Repo) List(ctx context.Context) ([]StockItem, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+stockColumns+` FROM stock_items ORDER BY category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockItem
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
