package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "harbinger"

var (
	eventsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of container lifecycle events processed, by action.",
		},
		[]string{"action"},
	)

	eventsDroppedTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Total number of events that did not produce a notification, by reason.",
		},
		[]string{"reason"},
	)

	notificationsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total number of notifications handled, by result (delivered, transient_failure, permanent_failure).",
		},
		[]string{"result"},
	)

	deliveryAttemptsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Total number of webhook POST attempts, including retries.",
		},
	)

	logFetchFailuresTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_fetch_failures_total",
			Help:      "Total number of log excerpts that could not be fetched.",
		},
	)

	streamReconnectsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Total number of event stream (re)subscriptions after a disconnect.",
		},
	)

	registryContainers = promauto.With(prometheus.DefaultRegisterer).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_containers",
			Help:      "Number of containers currently tracked in memory.",
		},
	)

	watchState = promauto.With(prometheus.DefaultRegisterer).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watch_state",
			Help:      "Current state of the event watch loop (1 for the active state, 0 otherwise).",
		},
		[]string{"state"},
	)
)

func RecordEvent(action string) {
	eventsTotal.WithLabelValues(action).Inc()
}

// RecordEventDropped counts an event that was observed but not notified (filtered, duplicate, suppressed).
func RecordEventDropped(reason string) {
	eventsDroppedTotal.WithLabelValues(reason).Inc()
}

func RecordNotification(result string) {
	notificationsTotal.WithLabelValues(result).Inc()
}

func RecordDeliveryAttempt() {
	deliveryAttemptsTotal.Inc()
}

func RecordLogFetchFailure() {
	logFetchFailuresTotal.Inc()
}

func RecordStreamReconnect() {
	streamReconnectsTotal.Inc()
}

func SetRegistryContainers(n int) {
	registryContainers.Set(float64(n))
}

// SetWatchState marks current as the active watch loop state among all.
func SetWatchState(current string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		watchState.WithLabelValues(s).Set(v)
	}
}
