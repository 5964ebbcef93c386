// Package seed holds the starting menu and stock of a fresh installation.
package seed

import (
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	"github.com/shopspring/decimal"
)

func Flavors() []catalog.Flavor {
	names := []string{catalog.DefaultFlavorName, "BBQ", "BBQ Picante", "Juan Gabriel", "Jalapeño", "Chipotle", "Niurka"}
	ids := []string{"flv-natural", "flv-bbq", "flv-bbq-picante", "flv-juan-gabriel", "flv-jalapeno", "flv-chipotle", "flv-niurka"}
	out := make([]catalog.Flavor, len(names))
	for i := range names {
		out[i] = catalog.Flavor{ID: ids[i], Name: names[i], Price: decimal.Zero, IsActive: true, SortOrder: i + 1}
	}
	return out
}

func Styles() []catalog.Style {
	return []catalog.Style{
		{ID: "sty-asado", Name: catalog.StyleAsado, DisplayName: "Asado", IsActive: true, SortOrder: 1},
		{ID: "sty-rostizado", Name: catalog.StyleRostizado, DisplayName: "Rostizado", IsActive: true, SortOrder: 2},
	}
}

func Products() []catalog.Product {
	var flavorIDs, styleIDs []string
	for _, f := range Flavors() {
		flavorIDs = append(flavorIDs, f.ID)
	}
	for _, s := range Styles() {
		styleIDs = append(styleIDs, s.ID)
	}
	p := func(code, name string, price int64, sort int) catalog.Product {
		return catalog.Product{
			ID: "prd-" + code, Code: code, Name: name, Price: decimal.NewFromInt(price),
			IsActive: true, SortOrder: sort,
		}
	}

	pollo := p("pollo", "Pollo entero", 200, 1)
	medio := p("medio_pollo", "Medio pollo", 100, 2)
	pollo.FlavorIDs, pollo.StyleIDs = flavorIDs, styleIDs
	medio.FlavorIDs, medio.StyleIDs = flavorIDs, styleIDs

	costMedio := p("costillar_medio", "Medio costillar", 100, 3)
	costNormal := p("costillar_normal", "Costillar normal", 200, 4)
	costGrande := p("costillar_grande", "Costillar grande", 250, 5)
	for _, c := range []*catalog.Product{&costMedio, &costNormal, &costGrande} {
		c.FlavorIDs = flavorIDs
	}

	alitas := p("alitas", "Alitas", 180, 6)
	alitas.FlavorIDs = flavorIDs
	alitas.ShowOnlyInStore = true
	lechon := p("lechon", "Lechón", 300, 7)
	lechon.ShowOnlyInStore = true

	return []catalog.Product{pollo, medio, costMedio, costNormal, costGrande, alitas, lechon}
}

func Stock(now time.Time) []inventory.StockItem {
	item := func(code, name, category, unit string, step float64, qty, minQty int64) inventory.StockItem {
		return inventory.StockItem{
			ID: "stk-" + code, Code: code, Name: name, Category: category, Unit: unit,
			Step: decimal.NewFromFloat(step), CurrentQty: decimal.NewFromInt(qty), MinQty: decimal.NewFromInt(minQty),
			IsActive: true, UpdatedAt: now,
		}
	}
	return []inventory.StockItem{
		item("pollo", "Pollo", "materia_prima", "pieza", 0.5, 30, 5),
		item("costillar_normal", "Costillar normal", "materia_prima", "pieza", 0.5, 12, 3),
		item("costillar_grande", "Costillar grande", "materia_prima", "pieza", 1, 6, 2),
		item("tortillas", "Tortillas", "insumo", "paquete", 1, 40, 10),
		item("carbon", "Carbón", "insumo", "kg", 1, 25, 5),
	}
}
