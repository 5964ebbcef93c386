package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, source, delivery, tortillas_packs, total, status,
	customer_name, customer_phone, address_note, geo_lat, geo_lng, desired_at,
	cashier_id, created_at, updated_at`

// Create writes the order and its lines in one transaction.
func (r *Repo) Create(ctx context.Context, o Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var lat, lng *float64
	if o.Customer.Geo != nil {
		lat, lng = &o.Customer.Geo.Lat, &o.Customer.Geo.Lng
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, source, delivery, tortillas_packs, total, status,
			customer_name, customer_phone, address_note, geo_lat, geo_lng, desired_at,
			cashier_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.Source, o.Delivery, o.TortillasPacks, o.Total, o.Status,
		o.Customer.Name, o.Customer.Phone, o.Customer.AddressNote, lat, lng, o.Customer.DesiredAt,
		o.CashierID, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, position, kind, product_id, qty, flavor_id, flavor,
				style_id, chicken_style, override_price, unit_price, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			o.ID, i, it.Kind, it.ProductID, it.Qty, it.FlavorID, it.Flavor,
			it.StyleID, it.ChickenStyle, it.OverridePrice, it.UnitPrice, it.LineTotal)
		if err != nil {
			return fmt.Errorf("insert order item %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o        Order
		lat, lng *float64
	)
	err := row.Scan(&o.ID, &o.Source, &o.Delivery, &o.TortillasPacks, &o.Total, &o.Status,
		&o.Customer.Name, &o.Customer.Phone, &o.Customer.AddressNote, &lat, &lng, &o.Customer.DesiredAt,
		&o.CashierID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	if lat != nil && lng != nil {
		o.Customer.Geo = &Geo{Lat: *lat, Lng: *lng}
	}
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, apperr.Newf(apperr.CodeNotFound, "order %q not found", id)
	}
	if err != nil {
		return Order{}, err
	}
	items, err := r.items(ctx, []string{id})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[id]
	return o, nil
}

// List returns the newest orders first.
func (r *Repo) List(ctx context.Context, f ListFilter) ([]Order, error) {
	f = f.Normalized()
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []any{}
	if from, to, ok := f.Range(); ok {
		query += ` WHERE created_at >= $1 AND created_at < $2`
		args = append(args, from, to)
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out []Order
		ids []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *Repo) items(ctx context.Context, ids []string) (map[string][]LineItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, kind, product_id, qty, flavor_id, flavor, style_id, chicken_style,
			override_price, unit_price, line_total
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]LineItem, len(ids))
	for rows.Next() {
		var (
			orderID  string
			it       LineItem
			override decimal.NullDecimal
		)
		if err := rows.Scan(&orderID, &it.Kind, &it.ProductID, &it.Qty, &it.FlavorID, &it.Flavor,
			&it.StyleID, &it.ChickenStyle, &override, &it.UnitPrice, &it.LineTotal); err != nil {
			return nil, err
		}
		if override.Valid {
			v := override.Decimal
			it.OverridePrice = &v
		}
		out[orderID] = append(out[orderID], it)
	}
	return out, rows.Err()
}

// UpdateStatus is a compare-and-set on the current status.
func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error) {
	tag, err := r.DB.Exec(ctx, `UPDATE orders SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return Order{}, err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
			return Order{}, err
		}
		if !exists {
			return Order{}, apperr.Newf(apperr.CodeNotFound, "order %q not found", id)
		}
		return Order{}, apperr.New(apperr.CodeStateConflict, "order status changed concurrently; reload and retry")
	}
	return r.Get(ctx, id)
}
