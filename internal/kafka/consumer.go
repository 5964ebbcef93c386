package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message was processed and its offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the part of *kafka.Reader the consumer drives.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ConsumerConfig struct {
	Brokers []string
	Group   string
	Topic   string
	Workers int
	// StartOffset applies when the group has no committed offset yet
	// (kafka.FirstOffset or kafka.LastOffset).
	StartOffset int64
}

type Consumer struct {
	r       Reader
	workers int
	log     *logger.Logger
}

func NewConsumer(cfg ConsumerConfig, log *logger.Logger) *Consumer {
	start := cfg.StartOffset
	if start == 0 {
		start = kafka.FirstOffset
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.Group,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        250 * time.Millisecond,
		StartOffset:    start,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, cfg.Workers, log)
}

func newConsumer(r Reader, workers int, log *logger.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Consumer{r: r, workers: workers, log: log}
}

// Start fetches until ctx ends. Handler failures are logged and the offset
// stays uncommitted; a read error outside shutdown ends the loop.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer func() {
		if err := c.r.Close(); err != nil {
			c.log.Warn(ctx, "kafka reader close failed", err)
		}
	}()

	jobs := make(chan kafka.Message, 1024)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				mctx := c.log.WithFields(ctx, map[string]any{"partition": m.Partition, "offset": m.Offset})
				if err := h(mctx, m); err != nil {
					c.log.Warn(mctx, "kafka handler failed", err)
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
					c.log.Warn(mctx, "kafka commit failed", err)
				}
			}
		}()
	}
	defer wg.Wait()
	defer close(jobs)

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			return nil
		}
	}
}
