package models

// Severity captures ordinal impact levels.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank maps a severity onto the ordinal scale none < low < medium < high < critical.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// AnomalyType enumerates the anomaly classes the classifier recognises.
type AnomalyType string

const (
	AnomalyNone         AnomalyType = "none"
	AnomalyCPUSpike     AnomalyType = "cpu_spike"
	AnomalyMemoryLeak   AnomalyType = "memory_leak"
	AnomalyLatencySurge AnomalyType = "latency_surge"
	AnomalyErrorBurst   AnomalyType = "error_burst"
)

// AnomalyResult is the classification output for one service over one metric
// window. Created fresh on every classification call, never mutated.
type AnomalyResult struct {
	ServiceID         string      `json:"service_id"`
	HasAnomaly        bool        `json:"has_anomaly"`
	Severity          Severity    `json:"severity"`
	AnomalyType       AnomalyType `json:"anomaly_type"`
	Reason            string      `json:"reason"`
	Evidence          []string    `json:"evidence"`
	RecommendedAction string      `json:"recommended_action"`
	AffectedServices  []string    `json:"affected_services,omitempty"`
}
