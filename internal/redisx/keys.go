package redisx

import "time"

const (
	// Catalog snapshot (products + flavors + styles) as JSON: pos:catalog:snapshot
	KeyCatalogSnapshot = "pos:catalog:snapshot"
)

var (
	TTLCatalogSnapshot = 3 * time.Minute
)
