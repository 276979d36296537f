package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status values exported through the current_status gauge.
var statusValues = []string{"searching", "detected", "safe", "error"}

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	notificationsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cartesian",
			Subsystem: "panel",
			Name:      "notifications_total",
			Help:      "Number of notifications applied by the status reconciler.",
		}, []string{"topic"},
	)
	statusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cartesian",
			Subsystem: "panel",
			Name:      "status_transitions_total",
			Help:      "Number of display status changes between different kinds.",
		}, []string{"from", "to"},
	)
	currentStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "cartesian",
			Subsystem: "panel",
			Name:      "current_status",
			Help:      "Current display status (1 = active status, 0 = inactive).",
		}, []string{"status"},
	)
	bridgeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cartesian",
			Subsystem: "bridge",
			Name:      "errors_total",
			Help:      "Number of activations that ended in a bridge error, by kind.",
		}, []string{"kind"},
	)
	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cartesian",
			Subsystem: "bridge",
			Name:      "active_subscriptions",
			Help:      "Subscriptions currently held by reconcilers.",
		},
	)
	monitorPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cartesian",
			Subsystem: "monitor",
			Name:      "polls_total",
			Help:      "Number of detector polls by outcome (detected, absent, error).",
		}, []string{"outcome"},
	)
	monitorPollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cartesian",
			Subsystem: "monitor",
			Name:      "poll_duration_seconds",
			Help:      "Time spent running the detector for one poll.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{notificationsReceived, statusTransitions, currentStatus, bridgeErrors, activeSubscriptions, monitorPolls, monitorPollDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
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

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncNotification(topic string) {
	if regOK.Load() {
		notificationsReceived.WithLabelValues(topic).Inc()
	}
}

func RecordStatusTransition(from, to string) {
	if regOK.Load() && from != to {
		statusTransitions.WithLabelValues(from, to).Inc()
	}
}

// SetCurrentStatus marks status as the active value and clears the others.
func SetCurrentStatus(status string) {
	if !regOK.Load() {
		return
	}
	for _, s := range statusValues {
		var v float64
		if s == status {
			v = 1
		}
		currentStatus.WithLabelValues(s).Set(v)
	}
}

func IncBridgeError(kind string) {
	if regOK.Load() {
		bridgeErrors.WithLabelValues(kind).Inc()
	}
}

func IncSubscriptions() {
	if regOK.Load() {
		activeSubscriptions.Inc()
	}
}

func DecSubscriptions() {
	if regOK.Load() {
		activeSubscriptions.Dec()
	}
}

func ObservePoll(outcome string, seconds float64) {
	if regOK.Load() {
		monitorPolls.WithLabelValues(outcome).Inc()
		monitorPollDuration.Observe(seconds)
	}
}
