package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	OutboxTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_outbox_rows_total",
			Help: "Outbox rows processed by the publisher, by result",
		},
		[]string{"result"}, // published|failed|dead
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_events_total",
			Help: "Consumed events by stage",
		},
		[]string{"stage"}, // received|dropped|coalesced|dispatched
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_deliveries_total",
			Help: "Per-recipient delivery outcomes by event type",
		},
		[]string{"outcome", "event_type"}, // sent|failed|skipped
	)

	DevicesDeactivated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_devices_deactivated_total",
			Help: "Push tokens deactivated after provider-reported invalidity",
		},
	)

	CoalescerPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_coalescer_pending",
			Help: "Aggregates currently held in the coalescing window",
		},
	)
)

var once sync.Once

// MustRegister is safe to call from several commands in one process.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			OutboxTotal,
			EventsTotal,
			DeliveriesTotal,
			DevicesDeactivated,
			CoalescerPending,
		)
	})
}
