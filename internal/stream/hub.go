// Package stream fans events out to long-lived server-sent-event clients.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-pos/internal/logger"
	"github.com/ariefcatur/go-realtime-pos/internal/metrics"
	"github.com/google/uuid"
)

// Event is anything with a stable type name that marshals to the wire shape.
type Event interface {
	EventType() string
}

// Publisher delivers events to subscribers, locally or through a relay.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Options struct {
	// Name labels the hub in logs and metrics ("orders", "inventory").
	Name              string
	Buffer            int
	HeartbeatInterval time.Duration
	Log               *logger.Logger
	Metrics           *metrics.Metrics
	Now               func() time.Time
}

// Hub is an in-memory registry of connected clients. Delivery is at most once:
// a client whose buffer is full misses the frame.
type Hub struct {
	opts Options

	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool
}

type Client struct {
	ID     string
	frames chan []byte
}

// Frames yields encoded SSE frames; it is closed on Unsubscribe.
func (c *Client) Frames() <-chan []byte { return c.frames }

func NewHub(opts Options) *Hub {
	switch {
	case opts.Buffer <= 0:
		opts.Buffer = 64
	case opts.Buffer < 4:
		// room for the greeting frames
		opts.Buffer = 4
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 25 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Hub{opts: opts, clients: map[string]*Client{}}
}

func (h *Hub) Name() string { return h.opts.Name }

// Subscribe registers a client and queues the connection acknowledgement.
// After shutdown it returns a client whose frames are already closed.
func (h *Hub) Subscribe() *Client {
	c := &Client{ID: uuid.NewString(), frames: make(chan []byte, h.opts.Buffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(c.frames)
		return c
	}
	c.frames <- []byte(": connected " + c.ID + "\n\n")
	c.frames <- h.pingFrame()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.opts.Metrics.SetHubClients(h.opts.Name, n)
	return c
}

func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.frames)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.opts.Metrics.SetHubClients(h.opts.Name, n)
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast encodes ev once and offers it to every client.
func (h *Hub) Broadcast(ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ev.EventType(), err)
	}
	h.opts.Metrics.Broadcast(h.opts.Name, ev.EventType())
	h.BroadcastRaw(b)
	return nil
}

// BroadcastRaw sends an already encoded JSON payload as a data frame and
// returns how many clients accepted it.
func (h *Hub) BroadcastRaw(payload []byte) int {
	return h.fanout(DataFrame(payload))
}

// Forward rebroadcasts a payload encoded by another instance.
func (h *Hub) Forward(eventType string, payload []byte) int {
	h.opts.Metrics.Broadcast(h.opts.Name, eventType)
	return h.BroadcastRaw(payload)
}

func (h *Hub) Publish(_ context.Context, ev Event) error {
	return h.Broadcast(ev)
}

// Heartbeat sends a ping frame to every client.
func (h *Hub) Heartbeat() {
	h.fanout(h.pingFrame())
}

func (h *Hub) fanout(frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, c := range h.clients {
		select {
		case c.frames <- frame:
			delivered++
		default:
			h.opts.Metrics.FrameDropped(h.opts.Name)
		}
	}
	return delivered
}

// Offer queues a frame for one client without blocking.
func (h *Hub) Offer(id string, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	if !ok {
		return false
	}
	select {
	case c.frames <- frame:
		return true
	default:
		return false
	}
}

// Run sends heartbeats until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	t := time.NewTicker(h.opts.HeartbeatInterval)
	defer t.Stop()
	h.opts.Log.Info(ctx, "hub "+h.opts.Name+" started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case <-t.C:
			h.Heartbeat()
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.frames)
	}
	h.mu.Unlock()
	h.opts.Metrics.SetHubClients(h.opts.Name, 0)
}

func (h *Hub) pingFrame() []byte {
	return []byte("event: ping\ndata: " + strconv.FormatInt(h.opts.Now().UnixMilli(), 10) + "\n\n")
}

func DataFrame(payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	return append(frame, '\n', '\n')
}
