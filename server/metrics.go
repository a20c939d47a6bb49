// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jcodagnone/pinpoint/resolve"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus metrics of the location API.
type Metrics struct {
	gatherer prometheus.Gatherer

	Resolutions        *prometheus.CounterVec
	ResolutionDuration prometheus.Histogram
	Conflicts          prometheus.Histogram
	Edits              *prometheus.CounterVec
}

// NewMetrics registers the metrics against reg, defaulting to the global
// registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	resolutions, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pinpoint_resolutions_total",
		Help: "Initial location resolutions, labeled by diagnostic kind.",
	}, []string{"diagnostic"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pinpoint_resolution_duration_seconds",
		Help:    "Time to resolve an initial location, including GPS and geocoding waits.",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}))
	if err != nil {
		return nil, err
	}

	conflicts, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pinpoint_gps_address_distance_km",
		Help:    "Distance between the device GPS and the geocoded address when both resolved.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 50},
	}))
	if err != nil {
		return nil, err
	}

	edits, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pinpoint_edits_total",
		Help: "Position edits, labeled by event and result (accepted, rejected).",
	}, []string{"event", "result"}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:           gatherer,
		Resolutions:        resolutions,
		ResolutionDuration: duration,
		Conflicts:          conflicts,
		Edits:              edits,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}

	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveResolution records one resolution.
func (m *Metrics) ObserveResolution(o resolve.Outcome, d time.Duration) {
	if m == nil {
		return
	}

	m.Resolutions.WithLabelValues(o.Diagnostic.Kind.String()).Inc()
	m.ResolutionDuration.Observe(d.Seconds())

	if o.Diagnostic.Conflict != nil {
		m.Conflicts.Observe(o.Diagnostic.Conflict.DistanceKm)
	}
}

// ObserveEdit records one edit event.
func (m *Metrics) ObserveEdit(event string, accepted bool) {
	if m == nil {
		return
	}

	result := "rejected"
	if accepted {
		result = "accepted"
	}

	m.Edits.WithLabelValues(event, result).Inc()
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}

			return c, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}

		return c, err
	}

	return c, nil
}
