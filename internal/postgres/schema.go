package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/seed"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS flavors (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name        TEXT NOT NULL UNIQUE,
	price       NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (price >= 0),
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	sort_order  INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS styles (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL,
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	sort_order   INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS menu_products (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code               TEXT NOT NULL UNIQUE,
	name               TEXT NOT NULL,
	description        TEXT,
	price              NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	is_active          BOOLEAN NOT NULL DEFAULT TRUE,
	show_only_in_store BOOLEAN NOT NULL DEFAULT FALSE,
	sort_order         INT NOT NULL DEFAULT 0,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS menu_product_flavors (
	product_id TEXT NOT NULL REFERENCES menu_products(id),
	flavor_id  TEXT NOT NULL REFERENCES flavors(id),
	PRIMARY KEY (product_id, flavor_id)
);

CREATE TABLE IF NOT EXISTS menu_product_styles (
	product_id TEXT NOT NULL REFERENCES menu_products(id),
	style_id   TEXT NOT NULL REFERENCES styles(id),
	PRIMARY KEY (product_id, style_id)
);

CREATE TABLE IF NOT EXISTS stock_items (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	code           TEXT NOT NULL UNIQUE,
	name           TEXT NOT NULL,
	category       TEXT NOT NULL DEFAULT '',
	unit           TEXT NOT NULL DEFAULT 'pieza',
	step           NUMERIC(12,3) NOT NULL DEFAULT 1,
	current_qty    NUMERIC(12,3) NOT NULL DEFAULT 0 CHECK (current_qty >= 0),
	min_qty        NUMERIC(12,3) NOT NULL DEFAULT 0,
	max_qty        NUMERIC(12,3),
	supplier_name  TEXT NOT NULL DEFAULT '',
	supplier_phone TEXT NOT NULL DEFAULT '',
	supplier_notes TEXT NOT NULL DEFAULT '',
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS orders (
	id              TEXT PRIMARY KEY,
	source          TEXT NOT NULL,
	delivery        BOOLEAN NOT NULL,
	tortillas_packs INT NOT NULL DEFAULT 0 CHECK (tortillas_packs >= 0),
	total           NUMERIC(12,2) NOT NULL,
	status          TEXT NOT NULL,
	customer_name   TEXT NOT NULL DEFAULT '',
	customer_phone  TEXT NOT NULL DEFAULT '',
	address_note    TEXT NOT NULL DEFAULT '',
	geo_lat         DOUBLE PRECISION,
	geo_lng         DOUBLE PRECISION,
	desired_at      TEXT NOT NULL DEFAULT '',
	cashier_id      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at DESC);

CREATE TABLE IF NOT EXISTS order_items (
	id             BIGSERIAL PRIMARY KEY,
	order_id       TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
	position       INT NOT NULL,
	kind           TEXT NOT NULL,
	product_id     TEXT NOT NULL DEFAULT '',
	qty            INT NOT NULL CHECK (qty >= 1),
	flavor_id      TEXT NOT NULL DEFAULT '',
	flavor         TEXT NOT NULL DEFAULT '',
	style_id       TEXT NOT NULL DEFAULT '',
	chicken_style  TEXT NOT NULL DEFAULT '',
	override_price NUMERIC(12,2),
	unit_price     NUMERIC(12,2) NOT NULL,
	line_total     NUMERIC(12,2) NOT NULL,
	UNIQUE (order_id, position)
);
`

// EnsureSchema creates the tables if missing and inserts the starting menu
// and stock. Existing rows are left untouched.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	for _, f := range seed.Flavors() {
		b.Queue(`INSERT INTO flavors(id, name, price, is_active, sort_order) VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT DO NOTHING`, f.ID, f.Name, f.Price, f.IsActive, f.SortOrder)
	}
	for _, s := range seed.Styles() {
		b.Queue(`INSERT INTO styles(id, name, display_name, is_active, sort_order) VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT DO NOTHING`, s.ID, s.Name, s.DisplayName, s.IsActive, s.SortOrder)
	}
	for _, p := range seed.Products() {
		b.Queue(`INSERT INTO menu_products(id, code, name, description, price, is_active, show_only_in_store, sort_order)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT DO NOTHING`,
			p.ID, p.Code, p.Name, p.Description, p.Price, p.IsActive, p.ShowOnlyInStore, p.SortOrder)
		for _, fid := range p.FlavorIDs {
			b.Queue(`INSERT INTO menu_product_flavors(product_id, flavor_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, p.ID, fid)
		}
		for _, sid := range p.StyleIDs {
			b.Queue(`INSERT INTO menu_product_styles(product_id, style_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, p.ID, sid)
		}
	}
	for _, s := range seed.Stock(time.Now().UTC()) {
		b.Queue(`INSERT INTO stock_items(id, code, name, category, unit, step, current_qty, min_qty, is_active)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) ON CONFLICT DO NOTHING`,
			s.ID, s.Code, s.Name, s.Category, s.Unit, s.Step, s.CurrentQty, s.MinQty, s.IsActive)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	return tx.Commit(ctx)
}
