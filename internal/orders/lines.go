package orders

import (
	"strings"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/shopspring/decimal"
)

// Line is a resolved order line. The concrete type is picked from the catalog
// product: products with styles are ChickenLine, products with flavors are
// FlavoredLine, everything else is PlainLine.
type Line interface {
	Product() catalog.Product
	Quantity() int
	override() *decimal.Decimal
}

type PlainLine struct {
	Item     catalog.Product
	Qty      int
	Override *decimal.Decimal
}

type FlavoredLine struct {
	Item     catalog.Product
	Qty      int
	Flavor   *catalog.Flavor
	Override *decimal.Decimal
}

type ChickenLine struct {
	Item     catalog.Product
	Qty      int
	Style    catalog.Style
	Flavor   *catalog.Flavor
	Override *decimal.Decimal
}

func (l PlainLine) Product() catalog.Product      { return l.Item }
func (l PlainLine) Quantity() int                 { return l.Qty }
func (l PlainLine) override() *decimal.Decimal    { return l.Override }
func (l FlavoredLine) Product() catalog.Product   { return l.Item }
func (l FlavoredLine) Quantity() int              { return l.Qty }
func (l FlavoredLine) override() *decimal.Decimal { return l.Override }
func (l ChickenLine) Product() catalog.Product    { return l.Item }
func (l ChickenLine) Quantity() int               { return l.Qty }
func (l ChickenLine) override() *decimal.Decimal  { return l.Override }

// flavorOf returns the flavor carried by the line, if any.
func flavorOf(l Line) *catalog.Flavor {
	switch v := l.(type) {
	case FlavoredLine:
		return v.Flavor
	case ChickenLine:
		return v.Flavor
	}
	return nil
}

type resolveOptions struct {
	source   Source
	delivery bool
}

func invalid(format string, args ...any) error {
	return apperr.Newf(apperr.CodeValidation, format, args...)
}

// resolve turns a wire item into a typed line against a catalog snapshot.
func resolve(snap *catalog.Snapshot, in ItemInput, opts resolveOptions) (Line, error) {
	if in.Qty < 1 {
		return nil, invalid("quantity for %q must be at least 1", in.Kind)
	}

	prod, ok := snap.Product(in.Kind)
	if !ok && in.Kind == "" && in.ProductID != "" {
		prod, ok = snap.ProductByID(in.ProductID)
	}
	name := in.Kind
	if name == "" {
		name = in.ProductID
	}
	if !ok || !prod.IsActive {
		return nil, invalid("product %q is not available", name)
	}
	if opts.delivery && prod.ShowOnlyInStore {
		return nil, invalid("%s is only sold in store and cannot be delivered", prod.Name)
	}

	var override *decimal.Decimal
	if in.OverridePrice != nil && opts.source == SourceCaja {
		if in.OverridePrice.IsNegative() {
			return nil, invalid("override price for %q cannot be negative", prod.Code)
		}
		v := *in.OverridePrice
		override = &v
	}

	switch {
	case prod.HasStyles():
		style, err := resolveStyle(snap, prod, in)
		if err != nil {
			return nil, err
		}
		var flavor *catalog.Flavor
		if style.Name != catalog.StyleAsado {
			flavor = defaultFlavor(snap)
		} else if flavor, err = resolveFlavor(snap, prod, in); err != nil {
			return nil, err
		}
		return ChickenLine{Item: prod, Qty: in.Qty, Style: style, Flavor: flavor, Override: override}, nil

	case prod.HasFlavors():
		if in.StyleID != "" || in.ChickenStyle != "" {
			return nil, invalid("%s has no preparation styles", prod.Name)
		}
		flavor, err := resolveFlavor(snap, prod, in)
		if err != nil {
			return nil, err
		}
		return FlavoredLine{Item: prod, Qty: in.Qty, Flavor: flavor, Override: override}, nil

	default:
		if in.StyleID != "" || in.ChickenStyle != "" {
			return nil, invalid("%s has no preparation styles", prod.Name)
		}
		if in.FlavorID != "" || in.Flavor != "" {
			return nil, invalid("%s has no flavor options", prod.Name)
		}
		return PlainLine{Item: prod, Qty: in.Qty, Override: override}, nil
	}
}

func resolveStyle(snap *catalog.Snapshot, prod catalog.Product, in ItemInput) (catalog.Style, error) {
	name := strings.TrimSpace(in.ChickenStyle)
	if in.StyleID == "" && name == "" {
		name = catalog.StyleAsado
	}
	style, ok := snap.Style(in.StyleID, name)
	if !ok || !style.IsActive || !catalog.Offers(prod.StyleIDs, style.ID) {
		return catalog.Style{}, invalid("style %q is not available for %s", firstNonEmpty(name, in.StyleID), prod.Name)
	}
	return style, nil
}

func resolveFlavor(snap *catalog.Snapshot, prod catalog.Product, in ItemInput) (*catalog.Flavor, error) {
	if in.FlavorID == "" && strings.TrimSpace(in.Flavor) == "" {
		return nil, nil
	}
	f, ok := snap.Flavor(in.FlavorID, in.Flavor)
	if !ok || !f.IsActive || !catalog.Offers(prod.FlavorIDs, f.ID) {
		return nil, invalid("flavor %q is not available for %s", firstNonEmpty(in.Flavor, in.FlavorID), prod.Name)
	}
	return &f, nil
}

func defaultFlavor(snap *catalog.Snapshot) *catalog.Flavor {
	if f, ok := snap.Flavor("", catalog.DefaultFlavorName); ok {
		return &f
	}
	return &catalog.Flavor{Name: catalog.DefaultFlavorName, Price: decimal.Zero, IsActive: true}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// normalizedInput rewrites the wire item from the resolved line so downstream
// rules (eligibility, consumption) see canonical codes and the forced flavor.
func normalizedInput(l Line) ItemInput {
	p := l.Product()
	in := ItemInput{Kind: p.Code, Qty: l.Quantity(), ProductID: p.ID, OverridePrice: l.override()}
	if f := flavorOf(l); f != nil {
		in.FlavorID, in.Flavor = f.ID, f.Name
	}
	if c, ok := l.(ChickenLine); ok {
		in.StyleID, in.ChickenStyle = c.Style.ID, c.Style.Name
	}
	return in
}
