// Package metrics exposes Prometheus counters for the plan pipeline.
package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation outcomes
const (
	OutcomeSuccess         = "success"
	OutcomeImageFailed     = "image_failed"
	OutcomeGenerationError = "generation_failed"
	OutcomeInvalidFormat   = "invalid_format"
	OutcomePersistFailed   = "persistence_failed"
)

// Recorder is what the plan service reports to
type Recorder interface {
	RecordGeneration(outcome string, duration time.Duration)
	RecordMetricsDegraded()
	RecordCacheLookup(hit bool)
}

// Collector is the Prometheus implementation of Recorder
type Collector struct {
	generations     *prometheus.CounterVec
	generationTime  prometheus.Histogram
	metricsDegraded prometheus.Counter
	cacheLookups    *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planna_plan_generations_total",
			Help: "Plan generation requests by outcome",
		}, []string{"outcome"}),
		generationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "planna_plan_generation_seconds",
			Help:    "End-to-end plan generation latency",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		}),
		metricsDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "planna_metric_extraction_degraded_total",
			Help: "Scan metric extractions that fell back to empty metrics",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "planna_plan_cache_lookups_total",
			Help: "Plan cache lookups by result",
		}, []string{"result"}),
	}

	reg.MustRegister(c.generations, c.generationTime, c.metricsDegraded, c.cacheLookups)
	return c
}

func (c *Collector) RecordGeneration(outcome string, duration time.Duration) {
	c.generations.WithLabelValues(outcome).Inc()
	c.generationTime.Observe(duration.Seconds())
}

func (c *Collector) RecordMetricsDegraded() {
	c.metricsDegraded.Inc()
}

func (c *Collector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry on a Fiber route
func Handler(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Nop discards everything
type Nop struct{}

func (Nop) RecordGeneration(string, time.Duration) {}
func (Nop) RecordMetricsDegraded()                 {}
func (Nop) RecordCacheLookup(bool)                 {}
