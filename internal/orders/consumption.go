package orders

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Product kinds the kitchen stocks as raw material.
const (
	KindPollo           = "pollo"
	KindMedioPollo      = "medio_pollo"
	KindCostillarMedio  = "costillar_medio"
	KindCostillarNormal = "costillar_normal"
	KindCostillarGrande = "costillar_grande"
)

// Draw is one physical unit deduction caused by selling one unit of a kind.
type Draw struct {
	Key    string
	Factor decimal.Decimal
}

// ConsumptionMap translates sold kinds into inventory keys. Kinds absent from
// the map consume nothing.
type ConsumptionMap map[string][]Draw

var half = decimal.NewFromFloat(0.5)

var DefaultConsumption = ConsumptionMap{
	KindPollo:           {{Key: KindPollo, Factor: decimal.NewFromInt(1)}},
	KindMedioPollo:      {{Key: KindPollo, Factor: half}},
	KindCostillarMedio:  {{Key: KindCostillarNormal, Factor: half}},
	KindCostillarNormal: {{Key: KindCostillarNormal, Factor: decimal.NewFromInt(1)}},
	KindCostillarGrande: {{Key: KindCostillarGrande, Factor: decimal.NewFromInt(1)}},
}

func normalizeKind(kind string) string { return strings.ToLower(strings.TrimSpace(kind)) }

// Demand sums physical units per inventory key across the whole item list.
func (m ConsumptionMap) Demand(items []ItemInput) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		qty := decimal.NewFromInt(int64(it.Qty))
		for _, d := range m[normalizeKind(it.Kind)] {
			out[d.Key] = out[d.Key].Add(d.Factor.Mul(qty))
		}
	}
	return out
}

// Keys lists every inventory key the map can draw from, sorted.
func (m ConsumptionMap) Keys() []string {
	seen := map[string]struct{}{}
	for _, draws := range m {
		for _, d := range draws {
			seen[d.Key] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

// KeysFor lists the inventory keys one kind draws from, sorted.
func (m ConsumptionMap) KeysFor(kind string) []string {
	seen := map[string]struct{}{}
	for _, d := range m[normalizeKind(kind)] {
		seen[d.Key] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
