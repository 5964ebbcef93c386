package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/auth"
	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/go-chi/chi/v5"
)

type MenuSource interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

type ProductUpdater interface {
	UpdateProduct(ctx context.Context, code string, patch catalog.ProductPatch) (catalog.Product, error)
}

type MenuHandler struct {
	Catalog  MenuSource
	Products ProductUpdater
	Log      *logger.Logger
}

func (h *MenuHandler) Register(r chi.Router) {
	r.Get("/menu/active", h.active)
	r.With(requireRole(h.Log, auth.RoleAdmin)).Patch("/menu/products/{code}", h.updateProduct)
}

func (h *MenuHandler) active(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Catalog.Snapshot(r.Context())
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.ActiveMenu())
}

// updateProduct writes through to the store; readers see the change once the
// cached snapshot expires.
func (h *MenuHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var patch catalog.ProductPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	if patch.Empty() {
		writeError(r.Context(), h.Log, w, apperr.New(apperr.CodeValidation, "nothing to update"))
		return
	}
	if patch.Price != nil && patch.Price.IsNegative() {
		writeError(r.Context(), h.Log, w, apperr.New(apperr.CodeValidation, "price must not be negative"))
		return
	}
	p, err := h.Products.UpdateProduct(r.Context(), chi.URLParam(r, "code"), patch)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
