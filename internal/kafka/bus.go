package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/stream"
	"github.com/segmentio/kafka-go"
)

// Publisher is the producer side the bus needs.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error
}

// Bus implements stream.Publisher by sending events through the relay topic.
// Every instance's Relay then rebroadcasts them to its local hubs.
type Bus struct {
	Producer Publisher
	Service  string
	Now      func() time.Time
}

type keyed interface {
	Key() string
}

func (b *Bus) Publish(ctx context.Context, ev stream.Event) error {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	key := ev.EventType()
	if k, ok := ev.(keyed); ok && k.Key() != "" {
		key = k.Key()
	}
	env, err := NewEnvelope(b.Service, ev.EventType(), key, ev, now())
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return b.Producer.Publish(ctx, PartitionKey(key), value,
		kafka.Header{Key: HeaderEventType, Value: []byte(env.EventType)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(EnvelopeVersion))},
	)
}

// Relay consumes the relay topic and hands each payload to the hub
// registered for its event type.
type Relay struct {
	Log *logger.Logger

	mu     sync.RWMutex
	routes map[string]*stream.Hub
}

func NewRelay(log *logger.Logger) *Relay {
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{Log: log, routes: map[string]*stream.Hub{}}
}

// Route sends events of the given types to h.
func (r *Relay) Route(h *stream.Hub, eventTypes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range eventTypes {
		r.routes[t] = h
	}
}

// Handle is a consumer Handler. Undecodable or unrouted messages are logged
// and acknowledged so they never block the partition.
func (r *Relay) Handle(ctx context.Context, m kafka.Message) error {
	var env Envelope
	if err := UnmarshalEnvelope(m.Value, &env); err != nil {
		r.Log.Warn(ctx, "dropping relay message", err)
		return nil
	}
	head, err := UnwrapPayload[struct {
		Type string `json:"type"`
	}](env.Payload)
	if err != nil || head.Type != env.EventType {
		r.Log.Warn(r.Log.WithField(ctx, "event_type", env.EventType), "relay payload does not match its envelope", err)
		return nil
	}

	r.mu.RLock()
	h, ok := r.routes[env.EventType]
	r.mu.RUnlock()
	if !ok {
		r.Log.Debug(r.Log.WithField(ctx, "event_type", env.EventType), "no hub for relayed event")
		return nil
	}
	h.Forward(env.EventType, env.Payload)
	return nil
}
