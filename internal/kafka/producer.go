package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/metrics"
	"github.com/segmentio/kafka-go"
)

var (
	ErrProducerClosed = errors.New("kafka producer closed")
	ErrQueueFull      = errors.New("kafka producer queue full")
)

// Writer is the part of *kafka.Writer the producer drives.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues messages in memory and writes them from one goroutine, so
// callers never wait on the broker. A full queue drops the message.
type Producer struct {
	// Metrics counts dropped messages; set it before Start.
	Metrics *metrics.Metrics

	w     Writer
	log   *logger.Logger
	inbox chan kafka.Message

	once    sync.Once
	closing chan struct{}
	done    chan struct{}
}

func NewProducer(brokers []string, topic string, buf int, log *logger.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}, buf, log)
}

func newProducer(w Writer, buf int, log *logger.Logger) *Producer {
	if buf <= 0 {
		buf = 1024
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Producer{
		w:       w,
		log:     log,
		inbox:   make(chan kafka.Message, buf),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start runs the write loop until Close is called or ctx ends; queued
// messages are flushed before the writer closes.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.done)
		for {
			select {
			case m := <-p.inbox:
				p.write(ctx, m)
			case <-p.closing:
				p.drain()
				return
			case <-ctx.Done():
				p.Close()
				p.drain()
				return
			}
		}
	}()
}

func (p *Producer) write(ctx context.Context, m kafka.Message) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(wctx, m); err != nil {
		p.log.Error(p.log.WithField(ctx, "key", string(m.Key)), "kafka write failed", err)
	}
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(context.Background(), m)
		default:
			if err := p.w.Close(); err != nil {
				p.log.Warn(context.Background(), "kafka writer close failed", err)
			}
			return
		}
	}
}

// Publish queues one message without blocking. When the queue is full the
// message is dropped and ErrQueueFull returned.
func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	select {
	case <-p.closing:
		return ErrProducerClosed
	default:
	}
	m := kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}
	select {
	case p.inbox <- m:
		return nil
	default:
		p.Metrics.KafkaMessageDropped()
		p.log.Warn(p.log.WithField(ctx, "key", string(key)), "kafka queue full, message dropped", nil)
		return ErrQueueFull
	}
}

// Close stops accepting messages; the loop flushes what is queued.
func (p *Producer) Close() { p.once.Do(func() { close(p.closing) }) }

// WaitClosed blocks until the loop has flushed and closed the writer.
func (p *Producer) WaitClosed() { <-p.done }
