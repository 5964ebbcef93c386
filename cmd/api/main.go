package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/auth"
	"github.com/ariefcatur/go-realtime-pos/internal/catalog"
	"github.com/ariefcatur/go-realtime-pos/internal/config"
	"github.com/ariefcatur/go-realtime-pos/internal/httpx"
	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/memstore"
	"github.com/ariefcatur/go-realtime-pos/internal/metrics"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/postgres"
	"github.com/ariefcatur/go-realtime-pos/internal/redisx"
	"github.com/ariefcatur/go-realtime-pos/internal/stream"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		ServiceName: cfg.ServiceName,
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "api stopped", err)
		os.Exit(1)
	}
	log.Info(ctx, "api stopped")
}

// stores groups the persistence backends selected by STORE_DRIVER.
type stores struct {
	catalog interface {
		catalog.Loader
		httpx.ProductUpdater
	}
	ledger inventory.Ledger
	orders orders.Store
	close  func()
}

func openStores(ctx context.Context, cfg config.Config, log *logger.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn(ctx, "using in-memory store; data is lost on restart", nil)
		mem := memstore.Seeded()
		return stores{catalog: mem, ledger: mem, orders: mem.Orders(), close: func() {}}, nil
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return stores{}, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return stores{}, err
	}
	return stores{
		catalog: &catalog.Repo{DB: db},
		ledger:  &inventory.Repo{DB: db},
		orders:  &orders.Repo{DB: db},
		close:   db.Close,
	}, nil
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	var kv catalog.KV
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		if err := redisx.Ping(ctx, rdb); err != nil {
			log.Warn(ctx, "redis unavailable; catalog cached in process only", err)
		} else {
			kv = rdb
		}
	}
	menu := catalog.NewCache(st.catalog, kv, cfg.CatalogCacheTTL, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hubOpts := func(name string) stream.Options {
		return stream.Options{
			Name:              name,
			Buffer:            cfg.HubClientBuffer,
			HeartbeatInterval: cfg.HeartbeatInterval,
			Log:               log,
			Metrics:           m,
		}
	}
	ordersHub := stream.NewHub(hubOpts("orders"))
	invHub := stream.NewHub(hubOpts("inventory"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ordersHub.Run(gctx) })
	g.Go(func() error { return invHub.Run(gctx) })

	var ordersPub, invPub stream.Publisher = ordersHub, invHub
	var producer *kafkax.Producer
	if cfg.KafkaEnabled {
		producer = kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 1024, log)
		producer.Metrics = m
		producer.Start(gctx)
		bus := &kafkax.Bus{Producer: producer, Service: cfg.ServiceName}
		ordersPub, invPub = bus, bus

		relay := kafkax.NewRelay(log)
		relay.Route(ordersHub, orders.EventNewOrder, orders.EventOrderUpdated)
		relay.Route(invHub, inventory.EventInventoryUpdate)
		consumer := kafkax.NewConsumer(kafkax.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			// every instance rebroadcasts every event, so each gets its own group
			Group:       cfg.ServiceName + "-" + uuid.NewString(),
			Topic:       cfg.KafkaTopic,
			Workers:     1,
			StartOffset: kafkago.LastOffset,
		}, log)
		g.Go(func() error { return consumer.Start(gctx, relay.Handle) })
	}

	locker := inventory.NewKeyLocker()
	applier := &inventory.Applier{Ledger: st.ledger, Locker: locker, Log: log, Metrics: m}
	watch := orders.DefaultConsumption.Keys()

	var poller *inventory.Poller
	if cfg.InventoryPollerEnabled {
		poller = &inventory.Poller{
			Source:    st.ledger,
			Keys:      watch,
			Interval:  cfg.InventoryPollInterval,
			Publisher: invPub,
			Log:       log,
			Metrics:   m,
		}
		g.Go(func() error { return poller.Run(gctx) })
	}

	loc, err := cfg.OrderWindow.Location()
	if err != nil {
		return err
	}
	svc := &orders.Service{
		Store:     st.orders,
		Catalog:   menu,
		Stock:     st.ledger,
		Consumer:  applier,
		Locker:    locker,
		Publisher: ordersPub,
		Window: orders.Window{
			OpenHour:  cfg.OrderWindow.OpenHour,
			CloseHour: cfg.OrderWindow.CloseHour,
			Location:  loc,
			Enforced:  cfg.OrderWindow.Enforced,
		},
		Log:     log,
		Metrics: m,
	}

	invHandler := &httpx.InventoryHandler{Ledger: st.ledger, Applier: applier, WatchKeys: watch, Hub: invHub}
	if poller != nil {
		invHandler.Latest = poller
	}
	router := httpx.NewRouter(httpx.RouterOptions{
		Log:            log,
		Verifier:       auth.Verifier{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer},
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Orders:         &httpx.OrdersHandler{Service: svc, Hub: ordersHub},
		Inventory:      invHandler,
		Menu:           &httpx.MenuHandler{Catalog: menu, Products: st.catalog},
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	g.Go(func() error {
		log.Info(log.WithField(gctx, "addr", cfg.HTTPAddr), "http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	if producer != nil {
		producer.Close()
		producer.WaitClosed()
	}
	return err
}
