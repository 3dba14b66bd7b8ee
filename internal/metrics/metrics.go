// Package metrics defines the Prometheus instruments for index operations.
//
// Instruments are package-level and registered with the default registry
// through promauto, so any process embedding the index can expose them with
// promhttp.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EdgesAdded counts dependency edges inserted by Add and Update.
	EdgesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pkgindex_dependency_edges_added_total",
			Help: "Total number of dependency edges inserted",
		},
	)

	// EdgesRemoved counts dependency edges deleted by Update and Remove.
	EdgesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pkgindex_dependency_edges_removed_total",
			Help: "Total number of dependency edges deleted",
		},
	)

	// UnresolvableDependencies counts declared package identifiers that had
	// no row in the identifier table.
	UnresolvableDependencies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pkgindex_unresolvable_dependencies_total",
			Help: "Total number of declared dependencies naming an unknown package",
		},
	)

	// ConsistencyViolations counts dangling edges found by consistency scans.
	ConsistencyViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pkgindex_consistency_violations_total",
			Help: "Total number of dependency edges found referencing missing rows",
		},
	)

	// PrunedValues counts interned values deleted after losing their last
	// reference, labeled by table.
	PrunedValues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgindex_pruned_values_total",
			Help: "Total number of unreferenced interned values deleted",
		},
		[]string{"table"},
	)

	// OperationDuration measures index operations end to end.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pkgindex_operation_duration_seconds",
			Help:    "Duration of index operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)

	// OperationErrors counts failed index operations.
	OperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pkgindex_operation_errors_total",
			Help: "Total number of failed index operations",
		},
		[]string{"operation"},
	)
)

// Observe records the duration of an operation started at start and, when
// err is non-nil, counts it as failed.
func Observe(operation string, start time.Time, err error) {
	OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		OperationErrors.WithLabelValues(operation).Inc()
	}
}
