// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	processorDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "epgsnoop_processor_duration_seconds",
		Help:    "Duration of one processor pass over all valid programs",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
	}, []string{"processor"})

	processorVisitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgsnoop_processor_programs_visited_total",
		Help: "Valid programs handed to a processor",
	}, []string{"processor"})

	processorInactiveTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgsnoop_processor_inactive_total",
		Help: "Processors skipped because they deactivated at construction",
	}, []string{"processor"})

	processorMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgsnoop_processor_structural_mutations_total",
		Help: "Programs inserted or deleted at the end of a processor pass",
	}, []string{"processor", "op"}) // op=insert|delete
)

func ObserveProcessorPass(name string, visited int, seconds float64) {
	processorDurationSeconds.WithLabelValues(name).Observe(seconds)
	processorVisitedTotal.WithLabelValues(name).Add(float64(visited))
}

func IncProcessorInactive(name string) { processorInactiveTotal.WithLabelValues(name).Inc() }

func RecordProcessorMutations(name string, inserted, deleted int) {
	processorMutationsTotal.WithLabelValues(name, "insert").Add(float64(inserted))
	processorMutationsTotal.WithLabelValues(name, "delete").Add(float64(deleted))
}
