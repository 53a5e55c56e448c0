package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/appweather/internal/weather"
)

// Metrics holds the Prometheus collectors for provider fetches and refreshes.
// It implements weather.Metrics.
type Metrics struct {
	FetchTotal    *prometheus.CounterVec   // labels: provider, op={current,forecast}, outcome
	FetchDuration *prometheus.HistogramVec // labels: provider, op
	Refreshes     *prometheus.CounterVec   // labels: outcome={ok,partial,failed}
	Published     prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appweather",
			Name:      "provider_fetch_total",
			Help:      "Provider calls by operation and outcome.",
		}, []string{"provider", "op", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "appweather",
			Name:      "provider_fetch_duration_seconds",
			Help:      "Provider call duration including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "op"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appweather",
			Name:      "refresh_total",
			Help:      "Refreshes by joined outcome of both fetches.",
		}, []string{"outcome"}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "appweather",
			Name:      "mqtt_published_total",
			Help:      "Forecast messages published to the MQTT broker.",
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.FetchTotal, m.FetchDuration, m.Refreshes, m.Published)
	return m
}

// NewMetricsForTesting creates unregistered metrics so tests can build many.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveFetch records one provider call.
func (m *Metrics) ObserveFetch(provider, op string, err error, seconds float64) {
	m.FetchTotal.WithLabelValues(provider, op, fetchOutcome(err)).Inc()
	m.FetchDuration.WithLabelValues(provider, op).Observe(seconds)
}

// ObserveRefresh records the joined outcome of a refresh.
func (m *Metrics) ObserveRefresh(outcome string) {
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func fetchOutcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := weather.KindOf(err); kind != 0 {
		return kind.String()
	}
	return "error"
}
