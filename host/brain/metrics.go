package brain

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a Prometheus registry with the Go and process
// collectors registered
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry over HTTP
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics counts brain exchanges. A nil *Metrics records nothing.
type Metrics struct {
	Exchanges     *prometheus.CounterVec   // labels: command, result
	Nacks         *prometheus.CounterVec   // labels: command, status
	Latency       *prometheus.HistogramVec // labels: command
	BytesSent     prometheus.Counter
	BytesReceived prometheus.Counter
}

// NewMetrics registers and returns the exchange metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "v5link_exchanges_total",
			Help: "CDC2 request/reply exchanges by command and result.",
		}, []string{"command", "result"}),
		Nacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "v5link_nacks_total",
			Help: "Negative acknowledgements by command and status.",
		}, []string{"command", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "v5link_exchange_seconds",
			Help:    "Time from request write to decoded reply.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"command"}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "v5link_bytes_sent_total",
			Help: "Bytes written to the brain.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "v5link_bytes_received_total",
			Help: "Bytes read from the brain.",
		}),
	}
	reg.MustRegister(m.Exchanges, m.Nacks, m.Latency, m.BytesSent, m.BytesReceived)
	return m
}

func (m *Metrics) observe(command, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Exchanges.WithLabelValues(command, result).Inc()
	if result == resultOK || result == resultNack {
		m.Latency.WithLabelValues(command).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) nack(command, status string) {
	if m == nil {
		return
	}
	m.Nacks.WithLabelValues(command, status).Inc()
}

func (m *Metrics) sent(n int) {
	if m == nil {
		return
	}
	m.BytesSent.Add(float64(n))
}

func (m *Metrics) received(n int) {
	if m == nil {
		return
	}
	m.BytesReceived.Add(float64(n))
}
