package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StyleAsado     = "asado"
	StyleRostizado = "rostizado"

	// DefaultFlavorName is forced on chicken lines prepared in any style other than asado.
	DefaultFlavorName = "Sinaloa (Natural)"
)

type Product struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	IsActive        bool            `json:"isActive"`
	FlavorIDs       []string        `json:"availableFlavors"`
	StyleIDs        []string        `json:"availableStyles"`
	ShowOnlyInStore bool            `json:"showOnlyInStore"`
	SortOrder       int             `json:"sortOrder"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// HasStyles reports whether the product offers a preparation choice (whole/half chicken).
func (p Product) HasStyles() bool { return len(p.StyleIDs) > 0 }

func (p Product) HasFlavors() bool { return len(p.FlavorIDs) > 0 }

type Flavor struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	IsActive  bool            `json:"isActive"`
	SortOrder int             `json:"sortOrder"`
}

type Style struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	IsActive    bool   `json:"isActive"`
	SortOrder   int    `json:"sortOrder"`
}

// ProductPatch is the admin partial update for a menu product.
type ProductPatch struct {
	Name            *string          `json:"name,omitempty"`
	Description     *string          `json:"description,omitempty"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	IsActive        *bool            `json:"isActive,omitempty"`
	ShowOnlyInStore *bool            `json:"showOnlyInStore,omitempty"`
	SortOrder       *int             `json:"sortOrder,omitempty"`
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.IsActive == nil && p.ShowOnlyInStore == nil && p.SortOrder == nil
}

// Apply copies the set fields of the patch onto prod.
func (p ProductPatch) Apply(prod *Product) {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.IsActive != nil {
		prod.IsActive = *p.IsActive
	}
	if p.ShowOnlyInStore != nil {
		prod.ShowOnlyInStore = *p.ShowOnlyInStore
	}
	if p.SortOrder != nil {
		prod.SortOrder = *p.SortOrder
	}
}
