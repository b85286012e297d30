// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgsnoop_proc_terminate_total",
		Help: "Signals sent to external process groups by outcome",
	}, []string{"signal", "outcome"}) // outcome=sent|esrch|error

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgsnoop_proc_wait_total",
		Help: "Exit results observed after terminating external processes",
	}, []string{"result"})

	tuneAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgsnoop_tune_attempts_total",
		Help: "Tuning attempts by outcome",
	}, []string{"outcome"}) // outcome=locked|failed
)

func IncProcTerminate(signal, outcome string) {
	procTerminateTotal.WithLabelValues(signal, outcome).Inc()
}

func IncProcWait(result string) { procWaitTotal.WithLabelValues(result).Inc() }

func IncTuneAttempt(outcome string) { tuneAttemptsTotal.WithLabelValues(outcome).Inc() }
