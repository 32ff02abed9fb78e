package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation and catalog metrics.
var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end recommendation latency including query encoding",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"preset", "status"},
	)

	SearchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of courses returned per search",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
		},
		[]string{"preset"},
	)

	ConstraintHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "constraint_hits_total",
			Help:      "Queries that activated a hard constraint",
		},
		[]string{"constraint"},
	)

	CatalogCourses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_courses",
			Help:      "Number of courses in the live catalog",
		},
	)

	CatalogReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog reload attempts",
		},
		[]string{"status"},
	)
)

var recMetricsRegistered bool

// RegisterRecommendMetrics registers recommendation and catalog metrics. Must be called once from main.
func RegisterRecommendMetrics() {
	if recMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResults)
	prometheus.MustRegister(ConstraintHitsTotal)
	prometheus.MustRegister(CatalogCourses)
	prometheus.MustRegister(CatalogReloadsTotal)
	recMetricsRegistered = true
}
