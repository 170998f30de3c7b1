package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reservo"

var (
	once sync.Once

	reservationOutcome = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_attempts_total",
			Help:      "Reservation attempts by outcome.",
		},
		[]string{"outcome"},
	)

	reservationCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_cancelled_total",
			Help:      "Reservations moved to cancelled.",
		},
	)

	slotQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_queries_total",
			Help:      "Availability computations by resulting day status.",
		},
		[]string{"status"},
	)

	lockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_lock_wait_seconds",
			Help:      "Time spent waiting for a reservation slot lock.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Reservation events handed to the publisher by type and result.",
		},
		[]string{"type", "result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(reservationOutcome, reservationCancelled, slotQueries, lockWait, eventsPublished)
	})
}

func IncReservation(outcome string) {
	reservationOutcome.WithLabelValues(outcome).Inc()
}

func IncReservationCancelled() {
	reservationCancelled.Inc()
}

func IncSlotQuery(status string) {
	slotQueries.WithLabelValues(status).Inc()
}

func ObserveLockWait(d time.Duration) {
	lockWait.Observe(d.Seconds())
}

func IncEventPublished(eventType string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	eventsPublished.WithLabelValues(eventType, result).Inc()
}
