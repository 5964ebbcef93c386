package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the order engine collectors. A nil *Metrics, or one built
// without a registerer, records nothing.
type Metrics struct {
	ordersCreated       *prometheus.CounterVec
	orderRejections     *prometheus.CounterVec
	createDuration      prometheus.Histogram
	hubClients          *prometheus.GaugeVec
	broadcasts          *prometheus.CounterVec
	droppedFrames       *prometheus.CounterVec
	inventoryUpdates    prometheus.Counter
	consumptionFailures *prometheus.CounterVec
	kafkaDropped        prometheus.Counter
}

// New registers the collectors on the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_orders_created_total",
			Help: "Orders accepted, by source.",
		}, []string{"source"}),
		orderRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_order_rejections_total",
			Help: "Order submissions rejected, by error code.",
		}, []string{"code"}),
		createDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pos_order_create_duration_seconds",
			Help:    "Time spent accepting an order.",
			Buckets: prometheus.DefBuckets,
		}),
		hubClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pos_hub_clients",
			Help: "Connected stream clients, by hub.",
		}, []string{"hub"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_hub_broadcasts_total",
			Help: "Events fanned out, by hub and event type.",
		}, []string{"hub", "event"}),
		droppedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_hub_dropped_frames_total",
			Help: "Frames dropped because a client buffer was full.",
		}, []string{"hub"}),
		inventoryUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_inventory_updates_total",
			Help: "Inventory change events emitted by the poller.",
		}),
		consumptionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_consumption_failures_total",
			Help: "Ledger keys whose decrement failed after an order was accepted.",
		}, []string{"key"}),
		kafkaDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_kafka_dropped_messages_total",
			Help: "Relay messages dropped because the producer queue was full.",
		}),
	}
	reg.MustRegister(m.ordersCreated, m.orderRejections, m.createDuration, m.hubClients,
		m.broadcasts, m.droppedFrames, m.inventoryUpdates, m.consumptionFailures, m.kafkaDropped)
	return m
}

func (m *Metrics) OrderCreated(source string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *Metrics) OrderRejected(code string) {
	if m == nil || m.orderRejections == nil {
		return
	}
	m.orderRejections.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *Metrics) ObserveCreate(d time.Duration) {
	if m == nil || m.createDuration == nil {
		return
	}
	m.createDuration.Observe(d.Seconds())
}

func (m *Metrics) SetHubClients(hub string, n int) {
	if m == nil || m.hubClients == nil {
		return
	}
	m.hubClients.WithLabelValues(normalizeLabel(hub)).Set(float64(n))
}

func (m *Metrics) Broadcast(hub, event string) {
	if m == nil || m.broadcasts == nil {
		return
	}
	m.broadcasts.WithLabelValues(normalizeLabel(hub), normalizeLabel(event)).Inc()
}

func (m *Metrics) FrameDropped(hub string) {
	if m == nil || m.droppedFrames == nil {
		return
	}
	m.droppedFrames.WithLabelValues(normalizeLabel(hub)).Inc()
}

func (m *Metrics) InventoryUpdate() {
	if m == nil || m.inventoryUpdates == nil {
		return
	}
	m.inventoryUpdates.Inc()
}

func (m *Metrics) ConsumptionFailed(key string) {
	if m == nil || m.consumptionFailures == nil {
		return
	}
	m.consumptionFailures.WithLabelValues(normalizeLabel(key)).Inc()
}

func (m *Metrics) KafkaMessageDropped() {
	if m == nil || m.kafkaDropped == nil {
		return
	}
	m.kafkaDropped.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
