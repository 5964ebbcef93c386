package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/auth"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterOptions struct {
	Log            *logger.Logger
	Verifier       auth.Verifier
	RequestTimeout time.Duration
	// Metrics serves /metrics when set.
	Metrics   http.Handler
	Orders    *OrdersHandler
	Inventory *InventoryHandler
	Menu      *MenuHandler
}

// NewRouter wires the API. Streams are mounted outside the request timeout so
// they stay open until the client leaves.
func NewRouter(opts RouterOptions) *chi.Mux {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	if opts.Orders != nil && opts.Orders.Log == nil {
		opts.Orders.Log = log
	}
	if opts.Inventory != nil && opts.Inventory.Log == nil {
		opts.Inventory.Log = log
	}
	if opts.Menu != nil && opts.Menu.Log == nil {
		opts.Menu.Log = log
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	r.Use(identify(opts.Verifier, log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	if opts.Orders != nil {
		opts.Orders.RegisterStream(r)
	}
	if opts.Inventory != nil {
		opts.Inventory.RegisterStream(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		if opts.Orders != nil {
			opts.Orders.Register(r)
		}
		if opts.Inventory != nil {
			opts.Inventory.Register(r)
		}
		if opts.Menu != nil {
			opts.Menu.Register(r)
		}
	})
	return r
}
