package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	book "github.com/0x5487/panoptes"
	"github.com/0x5487/panoptes/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "panoptes"

var rejectReasons = []protocol.RejectReason{
	protocol.RejectReasonMalformed,
	protocol.RejectReasonPriceRange,
	protocol.RejectReasonDuplicateID,
	protocol.RejectReasonInvalidSize,
	protocol.RejectReasonInvalidSide,
	protocol.RejectReasonUnknownEvent,
}

// Metrics holds the engine collectors on a private registry.
// Hot-path children are resolved once so recording never hashes label values.
type Metrics struct {
	Registry *prometheus.Registry

	messages       *prometheus.CounterVec
	rejected       *prometheus.CounterVec
	UnknownOrders  prometheus.Counter
	Latency        prometheus.Histogram
	restingOrders  *prometheus.GaugeVec
	ArenaUsedSlots prometheus.Gauge

	byEvent  map[protocol.EventType]prometheus.Counter
	byReason map[protocol.RejectReason]prometheus.Counter
	bidGauge prometheus.Gauge
	askGauge prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Wire messages received, by event type",
		}, []string{"event"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Messages skipped without touching the book, by reason",
		}, []string{"reason"}),
		UnknownOrders: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_orders_total",
			Help:      "Cancels and executes naming an order id that is not resting",
		}),
		Latency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "Producer timestamp to receive time, samples inside the accepted window",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 2, 11), // 1us -> ~1ms
		}),
		restingOrders: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resting_orders",
			Help:      "Orders resting in the book",
		}, []string{"side"}),
		ArenaUsedSlots: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "arena_used_slots",
			Help:      "Order slots handed out by the arena",
		}),
		byEvent:  make(map[protocol.EventType]prometheus.Counter),
		byReason: make(map[protocol.RejectReason]prometheus.Counter),
	}

	for _, ev := range []protocol.EventType{protocol.EventAdd, protocol.EventCancel, protocol.EventExecute, protocol.EventEndOfStream} {
		m.byEvent[ev] = m.messages.WithLabelValues(ev.String())
	}
	for _, r := range rejectReasons {
		m.byReason[r] = m.rejected.WithLabelValues(string(r))
	}
	m.bidGauge = m.restingOrders.WithLabelValues(book.Bid.String())
	m.askGauge = m.restingOrders.WithLabelValues(book.Ask.String())

	return m
}

// Message counts one received message.
func (m *Metrics) Message(ev protocol.EventType) {
	if c, ok := m.byEvent[ev]; ok {
		c.Inc()
		return
	}
	m.messages.WithLabelValues("unknown").Inc()
}

// Reject counts one skipped message.
func (m *Metrics) Reject(reason protocol.RejectReason) {
	if c, ok := m.byReason[reason]; ok {
		c.Inc()
	}
}

// ObserveLatency records one latency sample.
func (m *Metrics) ObserveLatency(d time.Duration) {
	m.Latency.Observe(d.Seconds())
}

// ObserveBook copies the book occupancy into the gauges.
func (m *Metrics) ObserveBook(stats book.BookStats) {
	m.bidGauge.Set(float64(stats.BidOrders))
	m.askGauge.Set(float64(stats.AskOrders))
	m.ArenaUsedSlots.Set(float64(stats.UsedSlots))
}

// RegisterPublishDropped exposes the drop counter of an async publisher.
func (m *Metrics) RegisterPublishDropped(dropped func() uint64) {
	promauto.With(m.Registry).NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_dropped_total",
		Help:      "Book logs dropped because the publish ring was full",
	}, func() float64 {
		return float64(dropped())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
