package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/apperr"
	"github.com/ariefcatur/go-realtime-pos/internal/auth"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/stream"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	Create(ctx context.Context, in orders.CreateInput) (orders.Order, error)
	Check(ctx context.Context, in orders.CheckInput) (orders.CheckResult, error)
	Get(ctx context.Context, id string) (orders.Order, error)
	List(ctx context.Context, f orders.ListFilter) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id string, next orders.Status, role auth.Role) (orders.Order, error)
}

type OrdersHandler struct {
	Service OrderService
	Hub     *stream.Hub
	Log     *logger.Logger
}

type statusReq struct {
	Status orders.Status `json:"status" validate:"required"`
}

// Register mounts the request/response routes; the stream is mounted by
// RegisterStream outside the request timeout.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Post("/orders/validate", h.validateOrder)
	r.Group(func(r chi.Router) {
		r.Use(requireRole(h.Log, auth.RoleCaja, auth.RoleAdmin))
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Patch("/orders/{id}/status", h.updateStatus)
	})
}

func (h *OrdersHandler) RegisterStream(r chi.Router) {
	r.With(requireRole(h.Log, auth.RoleCaja, auth.RoleAdmin)).Get("/orders/stream", h.stream)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	id := auth.FromContext(r.Context())
	if in.Source == orders.SourceCaja {
		if err := allowed(id.Role, []auth.Role{auth.RoleCaja, auth.RoleAdmin}); err != nil {
			writeError(r.Context(), h.Log, w, err)
			return
		}
		in.CashierID = id.Subject
	}

	o, err := h.Service.Create(r.Context(), in)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) validateOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.CheckInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	res, err := h.Service.Check(r.Context(), in)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	var f orders.ListFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(r.Context(), h.Log, w, apperr.New(apperr.CodeValidation, "date must be YYYY-MM-DD").
				WithDetails(map[string]string{"date": raw}))
			return
		}
		f.Day = day
	}
	limit, err := queryInt(r, "limit", orders.MaxListLimit, 1, orders.MaxListLimit)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	f.Limit = limit

	list, err := h.Service.List(r.Context(), f)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	o, err := h.Service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, auth.FromContext(r.Context()).Role)
	if err != nil {
		writeError(r.Context(), h.Log, w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) stream(w http.ResponseWriter, r *http.Request) {
	stream.Serve(w, r, h.Hub)
}
