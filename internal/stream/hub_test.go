package stream

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Type    string `json:"type"`
	OrderID string `json:"orderId"`
}

func (e testEvent) EventType() string { return e.Type }

func fixedNow() time.Time { return time.UnixMilli(1760900000000) }

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case f, ok := <-c.Frames():
			if !ok {
				return out
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestSubscribeQueuesGreeting(t *testing.T) {
	h := NewHub(Options{Name: "orders", Now: fixedNow})
	c := h.Subscribe()

	frames := drain(c)
	require.Len(t, frames, 2)
	assert.Equal(t, ": connected "+c.ID+"\n\n", string(frames[0]))
	assert.Equal(t, "event: ping\ndata: 1760900000000\n\n", string(frames[1]))
	assert.Equal(t, 1, h.Len())
}

func TestBroadcastSkipsUnsubscribedClients(t *testing.T) {
	h := NewHub(Options{Name: "orders"})
	a, b, gone := h.Subscribe(), h.Subscribe(), h.Subscribe()
	for _, c := range []*Client{a, b, gone} {
		drain(c)
	}

	h.Unsubscribe(gone.ID)
	require.NoError(t, h.Broadcast(testEvent{Type: "nueva_orden", OrderID: "o-1"}))

	want := "data: {\"type\":\"nueva_orden\",\"orderId\":\"o-1\"}\n\n"
	for _, c := range []*Client{a, b} {
		frames := drain(c)
		require.Len(t, frames, 1)
		assert.Equal(t, want, string(frames[0]))
	}

	_, open := <-gone.Frames()
	assert.False(t, open, "unsubscribed client channel must be closed")
	assert.Equal(t, 2, h.Len())
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	h := NewHub(Options{Name: "orders", Buffer: 4})
	slow := h.Subscribe()
	fast := h.Subscribe()
	drain(fast)

	// slow keeps its two greeting frames queued
	assert.Equal(t, 2, h.BroadcastRaw([]byte(`{"n":1}`)))
	assert.Equal(t, 2, h.BroadcastRaw([]byte(`{"n":2}`)))
	drain(fast)

	assert.Equal(t, 1, h.BroadcastRaw([]byte(`{"n":3}`)), "full client must not block the others")
	assert.Len(t, drain(slow), 4)
	assert.Len(t, drain(fast), 1)
}

func TestHeartbeatReachesAllClients(t *testing.T) {
	h := NewHub(Options{Now: fixedNow})
	a, b := h.Subscribe(), h.Subscribe()
	drain(a)
	drain(b)

	h.Heartbeat()
	for _, c := range []*Client{a, b} {
		frames := drain(c)
		require.Len(t, frames, 1)
		assert.True(t, strings.HasPrefix(string(frames[0]), "event: ping\n"))
	}
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	h := NewHub(Options{HeartbeatInterval: time.Hour})
	c := h.Subscribe()
	drain(c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	_, open := <-c.Frames()
	assert.False(t, open)
	assert.Zero(t, h.Len())

	late := h.Subscribe()
	_, open = <-late.Frames()
	assert.False(t, open, "subscribers after shutdown get a closed stream")
	assert.Zero(t, h.Len())

	served := make(chan struct{})
	go func() {
		Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/stream", nil), h)
		close(served)
	}()
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("stream stayed open on a stopped hub")
	}
}

func TestServeStreamsFrames(t *testing.T) {
	h := NewHub(Options{Name: "inventory", Now: fixedNow})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Serve(w, r, h, testEvent{Type: "inventory_update"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		require.True(t, lines.Scan())
		return lines.Text()
	}

	assert.True(t, strings.HasPrefix(next(), ": connected "))
	assert.Equal(t, "", next())
	assert.Equal(t, "event: ping", next())
	assert.Equal(t, "data: 1760900000000", next())
	assert.Equal(t, "", next())
	assert.Equal(t, `data: {"type":"inventory_update","orderId":""}`, next())
	assert.Equal(t, "", next())

	require.Eventually(t, func() bool { return h.Len() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, h.Broadcast(testEvent{Type: "inventory_update", OrderID: "x"}))
	assert.Equal(t, `data: {"type":"inventory_update","orderId":"x"}`, next())

	cancel()
	require.Eventually(t, func() bool { return h.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
