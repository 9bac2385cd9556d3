package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ChatTurns          *prometheus.CounterVec
	CompletionLatency  prometheus.Histogram
	SummaryRefreshes   *prometheus.CounterVec
	EncryptionFailures *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ChatTurns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns by result.",
		}, []string{"result"}),
		CompletionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_ms",
			Help:      "Latency of external completion calls in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000},
		}),
		SummaryRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_refreshes_total",
			Help:      "Background summary refreshes by result.",
		}, []string{"result"}),
		EncryptionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encryption_failures_total",
			Help:      "Encryption layer failures by kind.",
		}, []string{"kind"}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
	}
}

func (m *Metrics) ObserveCompletionLatency(d time.Duration) {
	m.CompletionLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveChatTurn(result string) {
	m.ChatTurns.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveSummaryRefresh(result string) {
	m.SummaryRefreshes.WithLabelValues(result).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
