package classifier

import (
	"fmt"

	"github.com/sentinelstack/sentinel-ops/internal/models"
)

// Threshold tiers for the window averages. Crossing a base threshold marks the
// window anomalous; the critical tier escalates severity.
const (
	LatencyHighMS     = 500.0
	LatencyCriticalMS = 1000.0
	LatencyElevatedMS = 300.0

	ErrorRateHigh     = 0.10
	ErrorRateCritical = 0.20
	ErrorRateElevated = 0.05

	CPUHigh     = 90.0
	CPUCritical = 95.0

	RAMHigh     = 85.0
	RAMCritical = 95.0
)

type windowStats struct {
	cpu       float64
	ram       float64
	latencyMS float64
	errorRate float64
	count     int
}

// Classify turns a window of metric samples into an anomaly verdict for the
// service. An empty window is valid "no data" input, not an error. The input
// slice is never mutated.
func Classify(serviceID string, samples []models.MetricSample) models.AnomalyResult {
	if len(samples) == 0 {
		return models.AnomalyResult{
			ServiceID:        serviceID,
			HasAnomaly:       false,
			Severity:         models.SeverityNone,
			AnomalyType:      models.AnomalyNone,
			Reason:           "no data available",
			AffectedServices: []string{serviceID},
		}
	}

	stats := computeStats(samples)

	result := models.AnomalyResult{
		ServiceID:        serviceID,
		Severity:         deriveSeverity(stats),
		AnomalyType:      models.AnomalyNone,
		Evidence:         buildEvidence(stats),
		AffectedServices: []string{serviceID},
	}
	result.HasAnomaly = result.Severity != models.SeverityNone

	switch {
	case !result.HasAnomaly:
		result.Reason = "metrics within normal thresholds"
	case result.Severity == models.SeverityLow:
		// Elevated but below every hard threshold: anomalous enough to
		// record, not enough to name a failure mode.
		result.Reason = fmt.Sprintf("metrics elevated: avg latency %.2fms, avg error rate %.2f", stats.latencyMS, stats.errorRate)
		result.RecommendedAction = "Monitor the service; metrics are elevated but below action thresholds"
	default:
		anomalyType, reason, action := classifyType(stats)
		result.AnomalyType = anomalyType
		result.Reason = reason
		result.RecommendedAction = action
	}

	return result
}

func computeStats(samples []models.MetricSample) windowStats {
	stats := windowStats{count: len(samples)}
	for _, s := range samples {
		stats.cpu += s.CPU
		stats.ram += s.RAM
		stats.latencyMS += s.LatencyMS
		stats.errorRate += s.ErrorRate
	}
	n := float64(stats.count)
	stats.cpu /= n
	stats.ram /= n
	stats.latencyMS /= n
	stats.errorRate /= n
	return stats
}

// deriveSeverity counts how many averages cross the critical tier versus the
// base (high) tier. Compounding problems escalate the ordinal level: a window
// with two borderline metrics is worse than one with a single hot metric.
func deriveSeverity(stats windowStats) models.Severity {
	critical := 0
	high := 0

	if stats.cpu > CPUCritical {
		critical++
	} else if stats.cpu > CPUHigh {
		high++
	}
	if stats.ram > RAMCritical {
		critical++
	} else if stats.ram > RAMHigh {
		high++
	}
	if stats.latencyMS > LatencyCriticalMS {
		critical++
	} else if stats.latencyMS > LatencyHighMS {
		high++
	}
	if stats.errorRate > ErrorRateCritical {
		critical++
	} else if stats.errorRate > ErrorRateHigh {
		high++
	}

	switch {
	case critical >= 2:
		return models.SeverityCritical
	case critical >= 1 || high >= 2:
		return models.SeverityHigh
	case high >= 1:
		return models.SeverityMedium
	case stats.latencyMS > LatencyElevatedMS || stats.errorRate > ErrorRateElevated:
		return models.SeverityLow
	default:
		return models.SeverityNone
	}
}

// classifyType applies a fixed priority order: resource exhaustion first
// (cpu, then memory), then downstream symptoms (latency, then errors). The
// ordering is a design choice: exhaustion is the more actionable signal, so it
// wins when several thresholds are crossed at once.
func classifyType(stats windowStats) (models.AnomalyType, string, string) {
	switch {
	case stats.cpu > CPUHigh:
		return models.AnomalyCPUSpike,
			fmt.Sprintf("CPU average %.2f%% exceeds %.0f%% threshold", stats.cpu, CPUHigh),
			"Scale out the service or profile hot code paths"
	case stats.ram > RAMHigh:
		return models.AnomalyMemoryLeak,
			fmt.Sprintf("RAM average %.2f%% exceeds %.0f%% threshold", stats.ram, RAMHigh),
			"Restart the service and audit for memory leaks"
	case stats.latencyMS > LatencyHighMS:
		return models.AnomalyLatencySurge,
			fmt.Sprintf("latency average %.2fms exceeds %.0fms threshold", stats.latencyMS, LatencyHighMS),
			"Check downstream dependencies and connection pools"
	case stats.errorRate > ErrorRateHigh:
		return models.AnomalyErrorBurst,
			fmt.Sprintf("error rate average %.2f exceeds %.2f threshold", stats.errorRate, ErrorRateHigh),
			"Inspect recent deploys and error logs for regressions"
	default:
		return models.AnomalyNone, "", ""
	}
}

// buildEvidence records the window averages and sample count regardless of the
// verdict, so operators can audit why a window did or did not trip.
func buildEvidence(stats windowStats) []string {
	return []string{
		fmt.Sprintf("avg_cpu=%.2f%%", stats.cpu),
		fmt.Sprintf("avg_ram=%.2f%%", stats.ram),
		fmt.Sprintf("avg_latency=%.2fms", stats.latencyMS),
		fmt.Sprintf("avg_error_rate=%.2f", stats.errorRate),
		fmt.Sprintf("sample_count=%d", stats.count),
	}
}
