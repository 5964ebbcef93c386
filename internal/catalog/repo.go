package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// Repo reads and edits the menu tables in Postgres.
type Repo struct{ DB *pgxpool.Pool }

// LoadSnapshot reads products, flavors and styles concurrently and stitches the
// product/flavor and product/style links onto the products.
func (r *Repo) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	var (
		products []Product
		flavors  []Flavor
		styles   []Style
		pf, ps   map[string][]string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { products, err = r.listProducts(gctx); return })
	g.Go(func() (err error) { flavors, err = r.listFlavors(gctx); return })
	g.Go(func() (err error) { styles, err = r.listStyles(gctx); return })
	g.Go(func() (err error) {
		pf, err = r.links(gctx, `SELECT product_id, flavor_id FROM menu_product_flavors`)
		return
	})
	g.Go(func() (err error) {
		ps, err = r.links(gctx, `SELECT product_id, style_id FROM menu_product_styles`)
		return
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	for i := range products {
		products[i].FlavorIDs = pf[products[i].ID]
		products[i].StyleIDs = ps[products[i].ID]
	}
	return NewSnapshot(products, flavors, styles, time.Now().UTC()), nil
}

const productColumns = `id, code, name, COALESCE(description, ''), price, is_active, show_only_in_store, sort_order, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Price, &p.IsActive, &p.ShowOnlyInStore, &p.SortOrder, &p.UpdatedAt)
	return p, err
}

func (r *Repo) listProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+productColumns+` FROM menu_products ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) listFlavors(ctx context.Context) ([]Flavor, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, price, is_active, sort_order FROM flavors ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Flavor
	for rows.Next() {
		var f Flavor
		if err := rows.Scan(&f.ID, &f.Name, &f.Price, &f.IsActive, &f.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repo) listStyles(ctx context.Context) ([]Style, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, display_name, is_active, sort_order FROM styles ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Style
	for rows.Next() {
		var s Style
		if err := rows.Scan(&s.ID, &s.Name, &s.DisplayName, &s.IsActive, &s.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) links(ctx context.Context, query string, args ...any) (map[string][]string, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]string{}
	for rows.Next() {
		var productID, otherID string
		if err := rows.Scan(&productID, &otherID); err != nil {
			return nil, err
		}
		out[productID] = append(out[productID], otherID)
	}
	return out, rows.Err()
}

// UpdateProduct applies an admin patch. Unset fields keep their stored value.
func (r *Repo) UpdateProduct(ctx context.Context, code string, patch ProductPatch) (Product, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE menu_products SET
			name               = COALESCE($2, name),
			description        = COALESCE($3, description),
			price              = COALESCE($4::numeric, price),
			is_active          = COALESCE($5, is_active),
			show_only_in_store = COALESCE($6, show_only_in_store),
			sort_order         = COALESCE($7, sort_order),
			updated_at         = now()
		WHERE code = $1
		RETURNING `+productColumns,
		code, patch.Name, patch.Description, patch.Price, patch.IsActive, patch.ShowOnlyInStore, patch.SortOrder,
	)
	p, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, apperr.Newf(apperr.CodeNotFound, "product %q not found", code)
	}
	if err != nil {
		return Product{}, err
	}

	flavors, err := r.links(ctx, `SELECT product_id, flavor_id FROM menu_product_flavors WHERE product_id = $1`, p.ID)
	if err != nil {
		return Product{}, err
	}
	styles, err := r.links(ctx, `SELECT product_id, style_id FROM menu_product_styles WHERE product_id = $1`, p.ID)
	if err != nil {
		return Product{}, err
	}
	p.FlavorIDs = flavors[p.ID]
	p.StyleIDs = styles[p.ID]
	return p, nil
}
