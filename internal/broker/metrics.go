package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesAdmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plumber_broker_messages_admitted_total",
		Help: "The total number of producer lines admitted to the queue",
	})

	MessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plumber_broker_messages_delivered_total",
		Help: "The total number of messages written to consumer sockets",
	})

	MessagesEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plumber_broker_messages_evicted_total",
		Help: "The total number of messages evicted by overwrite-on-full",
	})

	JournalRecordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plumber_broker_journal_records_dropped_total",
		Help: "The total number of journal records dropped on a full handoff channel",
	})

	ActiveProducers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plumber_broker_active_producers",
		Help: "The number of connected producer sessions",
	})

	ActiveConsumers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plumber_broker_active_consumers",
		Help: "The number of connected consumer sessions",
	})

	HeartbeatExpirations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plumber_broker_heartbeat_expirations_total",
		Help: "The total number of consumer sessions closed by heartbeat loss",
	})
)
