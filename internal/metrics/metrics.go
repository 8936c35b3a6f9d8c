// Package metrics declares the prometheus collectors for the livefeed
// subsystem.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ConnectAttempts counts channel open attempts, explicit and retried.
	ConnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "bus",
		Name:      "connect_attempts_total",
		Help:      "Number of channel open attempts",
	})

	// ChannelState is the bus connection state:
	// 0 closed, 1 connecting, 2 open, 3 erroring.
	ChannelState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "livefeed",
		Subsystem: "bus",
		Name:      "channel_state",
		Help:      "Bus connection state (0 closed, 1 connecting, 2 open, 3 erroring)",
	})

	// EventsPublished counts decoded events republished on the broadcast.
	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "bus",
		Name:      "events_published_total",
		Help:      "Number of change events published to observers",
	}, []string{"event_type"})

	// PayloadsDropped counts payloads that were not decodable. This is
	// expected traffic noise, not a fault.
	PayloadsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "bus",
		Name:      "payloads_dropped_total",
		Help:      "Number of raw payloads dropped as not decodable",
	})

	// ObserverOverflows counts events dropped because an observer stopped
	// draining its buffer.
	ObserverOverflows = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "bus",
		Name:      "observer_overflows_total",
		Help:      "Number of events dropped to non-draining observers",
	})

	// StaleCallbacks counts callbacks ignored because their channel was
	// superseded before they arrived.
	StaleCallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "bus",
		Name:      "stale_callbacks_total",
		Help:      "Number of callbacks ignored from superseded channels",
	})

	// ReconnectsScheduled counts backoff timers armed after failures.
	ReconnectsScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "bus",
		Name:      "reconnects_scheduled_total",
		Help:      "Number of reconnection attempts scheduled",
	})

	// ReconnectsExhausted counts failures that arrived after the attempt
	// budget was spent, parking the bus.
	ReconnectsExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "bus",
		Name:      "reconnects_exhausted_total",
		Help:      "Number of failures after the reconnection budget was exhausted",
	})

	// WatcherRefreshes counts debounced refresh callback invocations.
	WatcherRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "livefeed",
		Subsystem: "watcher",
		Name:      "refreshes_total",
		Help:      "Number of debounced refresh callbacks invoked",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectAttempts,
		ChannelState,
		EventsPublished,
		PayloadsDropped,
		ObserverOverflows,
		StaleCallbacks,
		ReconnectsScheduled,
		ReconnectsExhausted,
		WatcherRefreshes,
	)
}
