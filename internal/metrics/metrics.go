package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for remediation observations.
const (
	OutcomeNoAction  = "no_action"
	OutcomeResolved  = "resolved"
	OutcomeEscalated = "escalated"
	OutcomeFailed    = "failed"
)

var (
	remediationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel_ops",
			Name:      "remediations_total",
			Help:      "Total remediation decisions handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	remediationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sentinel_ops",
			Name:      "remediation_seconds",
			Help:      "Remediation workflow latency in seconds, including restart and settle time.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	anomaliesDetectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel_ops",
			Name:      "anomalies_detected_total",
			Help:      "Anomalies detected by the classifier, partitioned by severity.",
		},
		[]string{"severity"},
	)

	loopTicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel_ops",
			Name:      "loop_ticks_total",
			Help:      "Completed remediation loop ticks.",
		},
	)

	tickErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel_ops",
			Name:      "tick_errors_total",
			Help:      "Failures isolated during loop ticks, per service or whole sweep.",
		},
	)

	observerFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel_ops",
			Name:      "observer_failures_total",
			Help:      "Event observer callbacks that panicked and were discarded.",
		},
	)

	suppressedServices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel_ops",
			Name:      "suppressed_services",
			Help:      "Services currently excluded from automatic restarts.",
		},
	)

	hygieneScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel_ops",
			Name:      "hygiene_score",
			Help:      "Most recently computed fleet hygiene score (0-100).",
		},
	)
)

// Register attaches sentinel-ops collectors to the supplied Prometheus
// registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		remediationsTotal,
		remediationDurationSeconds,
		anomaliesDetectedTotal,
		loopTicksTotal,
		tickErrorsTotal,
		observerFailuresTotal,
		suppressedServices,
		hygieneScore,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRemediation records one remediation decision with its duration.
func ObserveRemediation(duration time.Duration, outcome string) {
	remediationsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	remediationDurationSeconds.Observe(duration.Seconds())
}

// ObserveAnomaly counts a detected anomaly by severity.
func ObserveAnomaly(severity string) {
	anomaliesDetectedTotal.WithLabelValues(severity).Inc()
}

// ObserveTick counts a completed loop tick.
func ObserveTick() {
	loopTicksTotal.Inc()
}

// ObserveTickError counts an isolated per-service tick failure.
func ObserveTickError() {
	tickErrorsTotal.Inc()
}

// ObserveObserverFailure counts a discarded observer panic.
func ObserveObserverFailure() {
	observerFailuresTotal.Inc()
}

// SetSuppressedServices publishes the current suppression count.
func SetSuppressedServices(n int) {
	suppressedServices.Set(float64(n))
}

// SetHygieneScore publishes the latest composite hygiene score.
func SetHygieneScore(score float64) {
	hygieneScore.Set(score)
}
