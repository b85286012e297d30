// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics holds the prometheus instruments of a capture run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Capture metrics
	packetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epgsnoop_packets_total",
		Help: "Total number of EIT packets assembled from decoder output",
	})

	packetsWithNewEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epgsnoop_packets_with_new_events_total",
		Help: "Packets that contributed at least one previously unseen event",
	})

	eventsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epgsnoop_events_accepted_total",
		Help: "Events accepted by the deduplicating collector",
	})

	idleStreak = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "epgsnoop_idle_packet_streak",
		Help: "Consecutive packets without a new event",
	})

	captureDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "epgsnoop_capture_duration_seconds",
		Help:    "Wall time of the capture phase",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1h
	})

	// Output metrics
	programmesWritten = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "epgsnoop_programmes_written",
		Help: "Number of valid programmes rendered in the last run",
	})

	channelsWritten = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "epgsnoop_channels_written",
		Help: "Number of channels rendered in the last run",
	})

	outputWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "epgsnoop_output_write_errors_total",
		Help: "Total number of guide write failures",
	})

	runFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "epgsnoop_run_failures_total",
		Help: "Total number of aborted runs by stage",
	}, []string{"stage"}) // stage=config|channels|tune|decoder|capture|render|write
)

// CaptureRecorder feeds capture progress into the prometheus instruments.
type CaptureRecorder struct{}

// ObservePacket records one assembled packet and the new events it carried.
func (CaptureRecorder) ObservePacket(newEvents int) {
	packetsTotal.Inc()
	if newEvents > 0 {
		packetsWithNewEvents.Inc()
		eventsAcceptedTotal.Add(float64(newEvents))
	}
}

// SetIdleStreak publishes the current idle counter.
func (CaptureRecorder) SetIdleStreak(n int) { idleStreak.Set(float64(n)) }

func RecordCaptureDuration(seconds float64) { captureDurationSeconds.Observe(seconds) }

func RecordOutput(channels, programmes int, writeErr error) {
	channelsWritten.Set(float64(channels))
	programmesWritten.Set(float64(programmes))
	if writeErr != nil {
		outputWriteErrors.Inc()
	}
}

func IncRunFailure(stage string) { runFailuresTotal.WithLabelValues(stage).Inc() }
