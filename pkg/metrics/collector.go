// Package metrics exposes the companion's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lumenqi/lumen-core/pkg/evolution"
	"github.com/lumenqi/lumen-core/pkg/memory"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "lumen"

// Collector records source attempts, responses, evolution cycles and store
// sizes. It implements orchestrator.Observer and evolution.CycleObserver.
type Collector struct {
	sourceAttempts  *prometheus.CounterVec
	sourceDuration  *prometheus.HistogramVec
	responsesTotal  *prometheus.CounterVec
	responseConf    *prometheus.HistogramVec
	cyclesTotal     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	autonomyLevel   prometheus.Gauge
	autonomyThresh  prometheus.Gauge
	traitValue      *prometheus.GaugeVec
	storeSize       *prometheus.GaugeVec
	memoriesMerged  prometheus.Counter
	memoriesDecayed prometheus.Counter

	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewCollector registers the metrics with reg. A nil reg uses a fresh
// registry, so several companions can live in one process.
func NewCollector(namespace string, reg *prometheus.Registry, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)

	return &Collector{
		sourceAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_attempts_total",
			Help:      "Source attempts by source and outcome",
		}, []string{"source", "outcome"}),
		sourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_duration_seconds",
			Help:      "Time spent in each source attempt",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
		responsesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Responses returned to the user by winning source",
		}, []string{"source"}),
		responseConf: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_confidence",
			Help:      "Confidence of returned responses",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"source"}),
		cyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evolution_cycles_total",
			Help:      "Evolution cycles by trigger and result",
		}, []string{"trigger", "result"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evolution_cycle_duration_seconds",
			Help:      "Evolution cycle duration",
			Buckets:   prometheus.DefBuckets,
		}),
		autonomyLevel: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "autonomy_level",
			Help:      "Current autonomy level (0-100)",
		}),
		autonomyThresh: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "autonomy_threshold",
			Help:      "Level the self source must reach to answer",
		}),
		traitValue: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trait_value",
			Help:      "Personality trait values",
		}, []string{"trait"}),
		storeSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_size",
			Help:      "Number of stored memories and patterns",
		}, []string{"store"}),
		memoriesMerged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_merged_total",
			Help:      "Memories absorbed by consolidation",
		}),
		memoriesDecayed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_decayed_total",
			Help:      "Memories removed by decay",
		}),
		gatherer: reg,
		logger:   logger.With(zap.String("component", "metrics")),
	}
}

// ObserveAttempt records one source attempt.
func (c *Collector) ObserveAttempt(source memory.Source, outcome string, elapsed time.Duration) {
	c.sourceAttempts.WithLabelValues(string(source), outcome).Inc()
	c.sourceDuration.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}

// ObserveResponse records the winning source of a Generate call.
func (c *Collector) ObserveResponse(source memory.Source, confidence float64) {
	c.responsesTotal.WithLabelValues(string(source)).Inc()
	c.responseConf.WithLabelValues(string(source)).Observe(confidence)
}

// ObserveCycle records an evolution cycle.
func (c *Collector) ObserveCycle(report evolution.CycleReport, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.cyclesTotal.WithLabelValues(report.Trigger, result).Inc()
	c.cycleDuration.Observe(report.Duration.Seconds())
	if err != nil {
		return
	}
	c.autonomyLevel.Set(report.LevelAfter)
	c.autonomyThresh.Set(report.Threshold)
	c.memoriesMerged.Add(float64(report.Consolidation.Merged))
	c.memoriesDecayed.Add(float64(report.Decay.MemoriesRemoved))
	c.logger.Debug("recorded evolution cycle", zap.String("trigger", report.Trigger))
}

// SetTraits updates the trait gauges.
func (c *Collector) SetTraits(values map[string]float64) {
	for name, v := range values {
		c.traitValue.WithLabelValues(name).Set(v)
	}
}

// SetAutonomy updates the autonomy gauges outside a cycle, after loading
// persisted state.
func (c *Collector) SetAutonomy(level, threshold float64) {
	c.autonomyLevel.Set(level)
	c.autonomyThresh.Set(threshold)
}

// SetStoreSizes updates the store size gauges.
func (c *Collector) SetStoreSizes(memories, patterns int) {
	c.storeSize.WithLabelValues("memories").Set(float64(memories))
	c.storeSize.WithLabelValues("patterns").Set(float64(patterns))
}

// Handler serves the registered metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
