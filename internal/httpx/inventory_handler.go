package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/auth"
	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/stream"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// LatestSource is the poller's cached view of the watched keys.
type LatestSource interface {
	Latest() (inventory.UpdateEvent, bool)
}

type InventoryHandler struct {
	Ledger    inventory.Ledger
	Applier   *inventory.Applier
	Latest    LatestSource
	WatchKeys []string
	Hub       *stream.Hub
	Log       *logger.Logger
	Now       func() time.Time
}

type adjustReq struct {
	Delta decimal.Decimal `json:"delta"`
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Get("/inventory/availability", h.availability)
	r.Group(func(r chi.Router) {
		r.Use(requireRole(h.Log, auth.RoleAdmin))
		r.Get("/inventory", h.list)
		r.Post("/inventory/{code}/adjust", h.adjust)
	})
}

func (h *InventoryHandler) RegisterStream(r chi.Router) {
	r.Get("/inventory/stream", h.stream)
}

// snapshot prefers the poller's last reading and falls back to the ledger
// when no poller runs in this process or it has not read yet.
func (h *InventoryHandler) snapshot(ctx context.Context) (inventory.UpdateEvent, error) {
	if h.Latest != nil {
		if ev, ok := h.Latest.Latest(); ok {
			return ev, nil
		}
	}
	levels, err := h.Ledger.Levels(ctx, h.WatchKeys)
	if err != nil {
		return inventory.UpdateEvent{}, apperr.Wrap(apperr.CodeDependency, err, "inventory unavailable")
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	return inventory.NewUpdateEvent(h.WatchKeys, levels, now()), nil
}

func (h *InventoryHandler) availability(w http.ResponseWriter, r *http.Request) {
	ev, err := h.snapshot(r.Context())
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *InventoryHandler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.Ledger.List(r.Context())
	if err != nil {
		writeError(r.Context(), h.Log, w, apperr.Wrap(apperr.CodeDependency, err, "inventory unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	code := chi.URLParam(r, "code")
	ctx := h.Log.WithFields(r.Context(), map[string]any{"code": code, "delta": req.Delta.String()})
	it, err := h.Applier.Adjust(ctx, code, req.Delta)
	if err != nil {
		writeError(ctx, h.Log, w, err)
		return
	}
	h.Log.Info(ctx, "inventory adjusted")
	writeJSON(w, http.StatusOK, it)
}

func (h *InventoryHandler) stream(w http.ResponseWriter, r *http.Request) {
	ev, err := h.snapshot(r.Context())
	if err != nil {
		h.Log.Warn(r.Context(), "inventory stream opened without snapshot", err)
		stream.Serve(w, r, h.Hub)
		return
	}
	stream.Serve(w, r, h.Hub, ev)
}
