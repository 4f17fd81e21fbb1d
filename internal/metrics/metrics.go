package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	spawnAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "attache",
			Subsystem: "backend",
			Name:      "spawn_attempts_total",
			Help:      "Number of backend spawn requests (boot and restart).",
		},
	)
	spawnFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "attache",
			Subsystem: "backend",
			Name:      "spawn_failures_total",
			Help:      "Number of backend spawn attempts that failed.",
		},
	)
	restarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "attache",
			Subsystem: "backend",
			Name:      "restarts_total",
			Help:      "Number of user-triggered backend restarts.",
		},
	)
	shutdowns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "attache",
			Subsystem: "backend",
			Name:      "shutdowns_total",
			Help:      "Number of backend shutdowns (graceful or kill).",
		},
	)
	healthProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attache",
			Subsystem: "health",
			Name:      "poll_outcomes_total",
			Help:      "Terminal health poll outcomes by result.",
		}, []string{"outcome"},
	)
	readySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "attache",
			Subsystem: "backend",
			Name:      "ready_seconds",
			Help:      "Time from spawn until the health endpoint answered.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all collectors with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{spawnAttempts, spawnFailures, restarts, shutdowns, healthProbes, readySeconds}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving metrics for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

func IncSpawnAttempt() { spawnAttempts.Inc() }
func IncSpawnFailure() { spawnFailures.Inc() }
func IncRestart()      { restarts.Inc() }
func IncShutdown()     { shutdowns.Inc() }
func IncPollReady()    { healthProbes.WithLabelValues("ready").Inc() }
func IncPollTimeout()  { healthProbes.WithLabelValues("timeout").Inc() }

func ObserveReady(seconds float64) { readySeconds.Observe(seconds) }
