package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the assistant's Prometheus collectors.
type Metrics struct {
	ChatRequests *prometheus.CounterVec
	ChatDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_chat_requests_total",
			Help: "Total number of chat requests by outcome (answered, fallback, invalid)",
		}, []string{"outcome"}),
		ChatDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "academy_chat_duration_seconds",
			Help:    "Time spent serving a chat request, including the upstream completion call",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveChat(outcome string, elapsed time.Duration) {
	m.ChatRequests.WithLabelValues(outcome).Inc()
	m.ChatDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
