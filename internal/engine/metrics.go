package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "translatord",
			Subsystem: "engine",
			Name:      "translations_total",
			Help:      "Translations by outcome (ok, memory, error, busy)",
		},
		[]string{"outcome"},
	)

	generationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "translatord",
			Subsystem: "engine",
			Name:      "generation_duration_seconds",
			Help:      "Duration of model generations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "translatord",
			Subsystem: "engine",
			Name:      "tokens_total",
			Help:      "Tokens processed, by direction (input, output)",
		},
		[]string{"direction"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "translatord",
			Subsystem: "engine",
			Name:      "queue_depth",
			Help:      "Requests holding a queue slot, in-flight included",
		},
	)

	memoryHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "translatord",
			Subsystem: "engine",
			Name:      "memory_hits_total",
			Help:      "Translations served from the translation memory",
		},
	)
)

func init() {
	prometheus.MustRegister(translationsTotal, generationSeconds, tokensTotal, queueDepth, memoryHitsTotal)
}

func observeOutcome(outcome string) { translationsTotal.WithLabelValues(outcome).Inc() }
