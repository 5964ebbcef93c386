package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/metrics"
	"github.com/ariefcatur/go-realtime-pos/internal/stream"
	"github.com/shopspring/decimal"
)

const EventInventoryUpdate = "inventory_update"

type UpdateEvent struct {
	Type      string             `json:"type"`
	Data      map[string]float64 `json:"data"`
	Timestamp int64              `json:"timestamp"`
}

func (e UpdateEvent) EventType() string { return EventInventoryUpdate }

func (e UpdateEvent) Key() string { return EventInventoryUpdate }

// NewUpdateEvent renders the watched keys; keys absent from levels read as zero.
func NewUpdateEvent(keys []string, levels map[string]decimal.Decimal, at time.Time) UpdateEvent {
	data := make(map[string]float64, len(keys))
	for _, k := range keys {
		data[k] = levels[k].InexactFloat64()
	}
	return UpdateEvent{Type: EventInventoryUpdate, Data: data, Timestamp: at.UnixMilli()}
}

type LevelReader interface {
	Levels(ctx context.Context, keys []string) (map[string]decimal.Decimal, error)
}

// Poller watches a subset of the ledger and publishes only when it changes.
// The first successful read seeds the state without publishing.
type Poller struct {
	Source    LevelReader
	Keys      []string
	Interval  time.Duration
	Publisher stream.Publisher
	Log       *logger.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time

	mu     sync.RWMutex
	last   map[string]decimal.Decimal
	latest UpdateEvent
	seeded bool
}

func (p *Poller) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Poller) log() *logger.Logger {
	if p.Log == nil {
		return logger.Nop()
	}
	return p.Log
}

// Poll runs one cycle and reports whether an update was published.
func (p *Poller) Poll(ctx context.Context) (bool, error) {
	levels, err := p.Source.Levels(ctx, p.Keys)
	if err != nil {
		return false, err
	}
	snap := make(map[string]decimal.Decimal, len(p.Keys))
	for _, k := range p.Keys {
		snap[k] = levels[k]
	}
	ev := NewUpdateEvent(p.Keys, snap, p.now())

	p.mu.Lock()
	first := !p.seeded
	changed := !first && differs(p.last, snap)
	if first || changed {
		p.last, p.latest, p.seeded = snap, ev, true
	}
	p.mu.Unlock()

	if !changed {
		return false, nil
	}
	p.Metrics.InventoryUpdate()
	if p.Publisher != nil {
		if err := p.Publisher.Publish(ctx, ev); err != nil {
			p.log().Warn(ctx, "inventory update publish failed", err)
		}
	}
	return true, nil
}

func differs(prev, next map[string]decimal.Decimal) bool {
	if len(prev) != len(next) {
		return true
	}
	for k, v := range next {
		old, ok := prev[k]
		if !ok || !old.Equal(v) {
			return true
		}
	}
	return false
}

// Latest returns the last observed snapshot once the poller has seeded.
func (p *Poller) Latest() (UpdateEvent, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.seeded
}

func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ctx = p.log().WithField(ctx, "component", "inventory_poller")
	p.log().Info(ctx, "inventory poller started")

	if _, err := p.Poll(ctx); err != nil {
		p.log().Warn(ctx, "inventory poll failed", err)
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log().Info(ctx, "inventory poller stopped")
			return nil
		case <-t.C:
			if _, err := p.Poll(ctx); err != nil {
				p.log().Warn(ctx, "inventory poll failed", err)
			}
		}
	}
}
