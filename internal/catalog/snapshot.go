package catalog

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Snapshot is a point-in-time read of the whole catalog used for validation and pricing.
// It is immutable once built and safe for concurrent use.
type Snapshot struct {
	Products []Product `json:"products"`
	Flavors  []Flavor  `json:"flavors"`
	Styles   []Style   `json:"styles"`
	TakenAt  time.Time `json:"takenAt"`

	once          sync.Once
	productByCode map[string]int
	productByID   map[string]int
	flavorByID    map[string]int
	flavorByName  map[string]int
	styleByID     map[string]int
	styleByName   map[string]int
}

func NewSnapshot(products []Product, flavors []Flavor, styles []Style, at time.Time) *Snapshot {
	s := &Snapshot{Products: products, Flavors: flavors, Styles: styles, TakenAt: at}
	s.index()
	return s
}

// index is lazy so snapshots decoded from the cache work without extra calls.
func (s *Snapshot) index() {
	s.once.Do(func() {
		s.productByCode = make(map[string]int, len(s.Products))
		s.productByID = make(map[string]int, len(s.Products))
		for i, p := range s.Products {
			s.productByCode[normalize(p.Code)] = i
			s.productByID[p.ID] = i
		}
		s.flavorByID = make(map[string]int, len(s.Flavors))
		s.flavorByName = make(map[string]int, len(s.Flavors))
		for i, f := range s.Flavors {
			s.flavorByID[f.ID] = i
			s.flavorByName[normalize(f.Name)] = i
		}
		s.styleByID = make(map[string]int, len(s.Styles))
		s.styleByName = make(map[string]int, len(s.Styles))
		for i, st := range s.Styles {
			s.styleByID[st.ID] = i
			s.styleByName[normalize(st.Name)] = i
		}
	})
}

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func (s *Snapshot) Product(code string) (Product, bool) {
	s.index()
	i, ok := s.productByCode[normalize(code)]
	if !ok {
		return Product{}, false
	}
	return s.Products[i], true
}

func (s *Snapshot) ProductByID(id string) (Product, bool) {
	s.index()
	i, ok := s.productByID[id]
	if !ok {
		return Product{}, false
	}
	return s.Products[i], true
}

// Flavor resolves by id first, then by case-insensitive name.
func (s *Snapshot) Flavor(id, name string) (Flavor, bool) {
	s.index()
	if id != "" {
		if i, ok := s.flavorByID[id]; ok {
			return s.Flavors[i], true
		}
	}
	if name != "" {
		if i, ok := s.flavorByName[normalize(name)]; ok {
			return s.Flavors[i], true
		}
	}
	return Flavor{}, false
}

func (s *Snapshot) Style(id, name string) (Style, bool) {
	s.index()
	if id != "" {
		if i, ok := s.styleByID[id]; ok {
			return s.Styles[i], true
		}
	}
	if name != "" {
		if i, ok := s.styleByName[normalize(name)]; ok {
			return s.Styles[i], true
		}
	}
	return Style{}, false
}

// Offers reports whether the product lists the given id among ids.
func Offers(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// Menu is the customer-facing view: active entries only, sorted.
type Menu struct {
	Products []MenuProduct `json:"products"`
	Flavors  []Flavor      `json:"flavors"`
	Styles   []Style       `json:"styles"`
}

// MenuProduct is a product with its active flavors and styles expanded.
type MenuProduct struct {
	Product
	Flavors []Flavor `json:"flavors"`
	Styles  []Style  `json:"styles"`
}

func (s *Snapshot) ActiveMenu() Menu {
	s.index()
	var m Menu
	for _, f := range s.Flavors {
		if f.IsActive {
			m.Flavors = append(m.Flavors, f)
		}
	}
	for _, st := range s.Styles {
		if st.IsActive {
			m.Styles = append(m.Styles, st)
		}
	}
	for _, p := range s.Products {
		if !p.IsActive {
			continue
		}
		mp := MenuProduct{Product: p}
		for _, id := range p.FlavorIDs {
			if i, ok := s.flavorByID[id]; ok && s.Flavors[i].IsActive {
				mp.Flavors = append(mp.Flavors, s.Flavors[i])
			}
		}
		for _, id := range p.StyleIDs {
			if i, ok := s.styleByID[id]; ok && s.Styles[i].IsActive {
				mp.Styles = append(mp.Styles, s.Styles[i])
			}
		}
		m.Products = append(m.Products, mp)
	}
	sort.SliceStable(m.Products, func(i, j int) bool {
		a, b := m.Products[i], m.Products[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		return a.Name < b.Name
	})
	sort.SliceStable(m.Flavors, func(i, j int) bool { return m.Flavors[i].SortOrder < m.Flavors[j].SortOrder })
	sort.SliceStable(m.Styles, func(i, j int) bool { return m.Styles[i].SortOrder < m.Styles[j].SortOrder })
	return m
}
