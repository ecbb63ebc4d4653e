package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "productgenius"

// Collector owns a private Prometheus registry with the service counters.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	Generations        *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	PurchaseRequests   *prometheus.CounterVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Generation requests by outcome",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting for the image generator",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"quality"}),
		PurchaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_requests_total",
			Help:      "Purchase request transitions by event",
		}, []string{"event"}),
	}
	reg.MustRegister(c.Generations, c.GenerationDuration, c.PurchaseRequests)
	return c
}

func (c *Collector) RecordGeneration(outcome string) {
	if c == nil {
		return
	}
	c.Generations.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveGenerator(quality string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.GenerationDuration.WithLabelValues(quality).Observe(elapsed.Seconds())
}

func (c *Collector) RecordPurchase(event string) {
	if c == nil {
		return
	}
	c.PurchaseRequests.WithLabelValues(event).Inc()
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
