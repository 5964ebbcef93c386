// Command inventory runs the inventory change poller on its own and publishes
// updates through the Kafka relay, so API instances can run with
// INVENTORY_POLLER_ENABLED=false.
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

	"github.com/ariefcatur/go-realtime-pos/internal/config"
	"github.com/ariefcatur/go-realtime-pos/internal/httpx"
	"github.com/ariefcatur/go-realtime-pos/internal/inventory"
	kafkax "github.com/ariefcatur/go-realtime-pos/internal/kafka"
	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/metrics"
	"github.com/ariefcatur/go-realtime-pos/internal/orders"
	"github.com/ariefcatur/go-realtime-pos/internal/postgres"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.ServiceName += "-inventory"
	log := logger.New(logger.Options{
		ServiceName: cfg.ServiceName,
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "inventory poller stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger) error {
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return errors.New("the standalone poller needs STORE_DRIVER=postgres")
	}
	if !cfg.KafkaEnabled {
		return errors.New("the standalone poller needs KAFKA_ENABLED=true")
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	g, gctx := errgroup.WithContext(ctx)

	producer := kafkax.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 256, log)
	producer.Metrics = m
	producer.Start(gctx)

	poller := &inventory.Poller{
		Source:    &inventory.Repo{DB: db},
		Keys:      orders.DefaultConsumption.Keys(),
		Interval:  cfg.InventoryPollInterval,
		Publisher: &kafkax.Bus{Producer: producer, Service: cfg.ServiceName},
		Log:       log,
		Metrics:   m,
	}
	g.Go(func() error { return poller.Run(gctx) })

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpx.NewRouter(httpx.RouterOptions{
			Log:     log,
			Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	err = g.Wait()
	producer.Close()
	producer.WaitClosed()
	return err
}
