package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_alerts_created_total",
			Help: "Total number of alerts persisted",
		},
		[]string{"severity", "triggered_by"},
	)

	CooldownSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_cooldown_suppressed_total",
			Help: "Rule matches suppressed by an active cooldown",
		},
		[]string{"rule"},
	)

	PredicatePanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_predicate_panics_total",
			Help: "Rule predicates that panicked during evaluation",
		},
		[]string{"rule"},
	)

	RenderFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertengine_render_failures_total",
			Help: "Message templates that failed to render",
		},
	)

	AlertCreateFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertengine_alert_create_failures_total",
			Help: "Alerts dropped because persistence failed",
		},
	)

	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_poll_errors_total",
			Help: "Failed poll cycles per signal source",
		},
		[]string{"source"},
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertengine_poll_duration_seconds",
			Help:    "Duration of one poll cycle including evaluation",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"source"},
	)

	EventsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_events_evaluated_total",
			Help: "Signal events run through the rule evaluator",
		},
		[]string{"source"},
	)

	SubscriberErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertengine_subscriber_errors_total",
			Help: "Subscriber callbacks that failed or panicked",
		},
	)

	ActiveCooldowns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertengine_active_cooldowns",
			Help: "Cooldown entries currently tracked",
		},
	)
)
