package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Webhook ingress metrics
	eventsReceivedTotal *prometheus.CounterVec

	// Sheet sink metrics
	sinkPostsTotal    *prometheus.CounterVec
	sinkPostDuration  prometheus.Histogram
	sinkOutcomesTotal *prometheus.CounterVec

	// Correlation table metrics
	correlationTableSize      prometheus.Gauge
	correlationEvictionsTotal prometheus.Counter

	// Notification metrics
	notifyOutcomesTotal *prometheus.CounterVec
	notifyBufferSize    prometheus.Gauge
	notifyDroppedTotal  prometheus.Counter
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initIngressMetrics(reg)
	s.initSinkMetrics(reg)
	s.initCorrelationMetrics(reg)
	s.initNotifyMetrics(reg)
	return s
}

func (s *PrometheusSink) initIngressMetrics(reg prometheus.Registerer) {
	s.eventsReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "junkdispatch_events_received_total",
		Help: "Total number of inbound webhook events by endpoint.",
	}, []string{"endpoint"})

	s.register(reg, s.eventsReceivedTotal, "junkdispatch_events_received_total")
}

func (s *PrometheusSink) initSinkMetrics(reg prometheus.Registerer) {
	s.sinkPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "junkdispatch_sheet_posts_total",
		Help: "Total number of sheet sink POST attempts.",
	}, []string{"status_class"})

	s.sinkPostDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "junkdispatch_sheet_post_duration_seconds",
		Help:    "Sheet sink request latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.sinkOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "junkdispatch_sheet_outcomes_total",
		Help: "Total number of sheet upsert outcomes.",
	}, []string{"outcome"})

	s.register(reg, s.sinkPostsTotal, "junkdispatch_sheet_posts_total")
	s.register(reg, s.sinkPostDuration, "junkdispatch_sheet_post_duration_seconds")
	s.register(reg, s.sinkOutcomesTotal, "junkdispatch_sheet_outcomes_total")
}

func (s *PrometheusSink) initCorrelationMetrics(reg prometheus.Registerer) {
	s.correlationTableSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "junkdispatch_correlation_table_size",
		Help: "Current number of call-to-job correlation entries.",
	})
	s.correlationEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "junkdispatch_correlation_evictions_total",
		Help: "Total number of expired correlation entries evicted.",
	})

	s.register(reg, s.correlationTableSize, "junkdispatch_correlation_table_size")
	s.register(reg, s.correlationEvictionsTotal, "junkdispatch_correlation_evictions_total")
}

func (s *PrometheusSink) initNotifyMetrics(reg prometheus.Registerer) {
	s.notifyOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "junkdispatch_notify_outcomes_total",
		Help: "Total number of notification sends by channel and outcome.",
	}, []string{"channel", "outcome"})

	s.notifyBufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "junkdispatch_notify_buffer_size",
		Help: "Current number of events in the notify buffer.",
	})

	s.notifyDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "junkdispatch_notify_dropped_total",
		Help: "Total number of notify events dropped (buffer full).",
	})

	s.register(reg, s.notifyOutcomesTotal, "junkdispatch_notify_outcomes_total")
	s.register(reg, s.notifyBufferSize, "junkdispatch_notify_buffer_size")
	s.register(reg, s.notifyDroppedTotal, "junkdispatch_notify_dropped_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Webhook ingress metrics implementation

func (s *PrometheusSink) EventReceived(endpoint string) {
	s.eventsReceivedTotal.WithLabelValues(endpoint).Inc()
}

// Sheet sink metrics implementation

func (s *PrometheusSink) SinkPostCompleted(statusClass string, duration time.Duration) {
	s.sinkPostsTotal.WithLabelValues(statusClass).Inc()
	s.sinkPostDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) SinkPostOutcome(outcome string) {
	s.sinkOutcomesTotal.WithLabelValues(outcome).Inc()
}

// Correlation table metrics implementation

func (s *PrometheusSink) CorrelationTableSize(size int) {
	s.correlationTableSize.Set(float64(size))
}

func (s *PrometheusSink) CorrelationEvictions(count int) {
	s.correlationEvictionsTotal.Add(float64(count))
}

// Notification metrics implementation

func (s *PrometheusSink) NotifyOutcome(channel, outcome string) {
	s.notifyOutcomesTotal.WithLabelValues(channel, outcome).Inc()
}

func (s *PrometheusSink) NotifyBufferSizeUpdate(size int) {
	s.notifyBufferSize.Set(float64(size))
}

func (s *PrometheusSink) NotifyBufferCapacitySet(capacity int) {
	// Capacity is static; nothing to record beyond the size gauge.
}

func (s *PrometheusSink) NotifyDropped() {
	s.notifyDroppedTotal.Inc()
}
