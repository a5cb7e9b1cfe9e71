package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_bookings_created_total",
		Help: "Bookings persisted, by approval state",
	}, []string{"approved"})

	BookingConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "propertyhub_booking_conflicts_total",
		Help: "Booking requests rejected for overlapping an existing booking",
	})

	ListingUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_listing_updates_total",
		Help: "Listing updates applied, by resulting approval state",
	}, []string{"approved"})

	SideEffects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_side_effects_total",
		Help: "Best-effort side effects by name and outcome",
	}, []string{"effect", "outcome"})

	SideEffectDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "propertyhub_side_effect_duration_seconds",
		Help:    "Duration of best-effort side effects",
		Buckets: prometheus.DefBuckets,
	}, []string{"effect"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "propertyhub_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by route",
	}, []string{"route"})
)

// Outcome labels for SideEffects
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomePanic   = "panic"
)
