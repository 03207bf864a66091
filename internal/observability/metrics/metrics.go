package metrics

import "github.com/prometheus/client_golang/prometheus"

// UpstreamMetrics exposes counters/histograms for calls to the Amedis backend.
type UpstreamMetrics struct {
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

func NewUpstreamMetrics(reg prometheus.Registerer) *UpstreamMetrics {
	m := &UpstreamMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amedis",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total requests to the Amedis backend",
		}, []string{"endpoint", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "amedis",
			Subsystem: "upstream",
			Name:      "request_latency_seconds",
			Help:      "Latency of Amedis backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency)
	return m
}

func (m *UpstreamMetrics) ObserveRequest(endpoint, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(endpoint, status).Inc()
	m.requestLatency.WithLabelValues(endpoint).Observe(seconds)
}

// ChatMetrics counts conversation turns handled by the flow controller.
type ChatMetrics struct {
	turnsTotal    *prometheus.CounterVec
	bookingsTotal *prometheus.CounterVec
}

func NewChatMetrics(reg prometheus.Registerer) *ChatMetrics {
	m := &ChatMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amedis",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total chat turns processed",
		}, []string{"stage"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "amedis",
			Subsystem: "chat",
			Name:      "bookings_total",
			Help:      "Total booking attempts finalized via chat",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.bookingsTotal)
	return m
}

func (m *ChatMetrics) ObserveTurn(stage string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(stage).Inc()
}

func (m *ChatMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}
