// Package metrics exposes estimator and ledger activity in Prometheus format.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/snowfall-bets/internal/bets"
	"github.com/i474232898/snowfall-bets/internal/estimator"
)

// Poll outcomes used as the "outcome" label.
const (
	OutcomeOK                 = "ok"
	OutcomeSourceUnavailable  = "source_unavailable"
	OutcomePersistenceFailure = "persistence_failure"
	OutcomeOther              = "other"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	polls       *prometheus.CounterVec
	total       prometheus.Gauge
	lastReading prometheus.Gauge
	lastSuccess prometheus.Gauge
	betsPlaced  prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snowfall_polls_total",
			Help: "Poll attempts by outcome.",
		}, []string{"outcome"}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snowfall_total_inches",
			Help: "Accumulated snowfall estimate in inches.",
		}),
		lastReading: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snowfall_last_reading_inches",
			Help: "Most recent raw precipitation reading in inches.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "snowfall_last_success_timestamp_seconds",
			Help: "Unix time of the last poll that produced a reading.",
		}),
		betsPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snowfall_bets_total",
			Help: "Bets accepted since start.",
		}),
	}

	m.registry.MustRegister(
		m.polls,
		m.total,
		m.lastReading,
		m.lastSuccess,
		m.betsPlaced,
		collectors.NewGoCollector(),
	)
	return m
}

// ObservePoll implements estimator.Observer.
func (m *Metrics) ObservePoll(res estimator.PollResult) {
	outcome := OutcomeOK
	switch {
	case res.Err == nil:
	case errors.Is(res.Err, estimator.ErrSourceUnavailable):
		outcome = OutcomeSourceUnavailable
	case errors.Is(res.Err, estimator.ErrPersistenceFailure):
		outcome = OutcomePersistenceFailure
	default:
		outcome = OutcomeOther
	}
	m.polls.WithLabelValues(outcome).Inc()

	if errors.Is(res.Err, estimator.ErrSourceUnavailable) {
		return
	}
	m.total.Set(res.State.TotalAccumulated)
	m.lastReading.Set(res.State.LastReading)
	m.lastSuccess.Set(float64(res.At.Unix()))
}

// BetPlaced implements bets.Recorder.
func (m *Metrics) BetPlaced(_ bets.Bet) {
	m.betsPlaced.Inc()
}

// SetTotal seeds the total gauge, e.g. from state loaded at start.
func (m *Metrics) SetTotal(total, lastReading float64) {
	m.total.Set(total)
	m.lastReading.Set(lastReading)
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
