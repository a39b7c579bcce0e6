package classifier

import (
	"strings"
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-ops/internal/models"
)

func sample(cpu, ram, latency, errorRate float64) models.MetricSample {
	return models.MetricSample{
		Timestamp: time.Now(),
		CPU:       cpu,
		RAM:       ram,
		LatencyMS: latency,
		ErrorRate: errorRate,
	}
}

func TestClassifyCriticalCPUSpike(t *testing.T) {
	result := Classify("svc", []models.MetricSample{sample(96, 40, 50, 0.01)})

	if !result.HasAnomaly {
		t.Fatalf("expected anomaly for cpu=96")
	}
	if result.Severity != models.SeverityHigh {
		t.Fatalf("expected high severity for one critical-tier metric, got %s", result.Severity)
	}
	if result.AnomalyType != models.AnomalyCPUSpike {
		t.Fatalf("expected cpu_spike, got %s", result.AnomalyType)
	}
	if result.RecommendedAction == "" {
		t.Fatalf("expected a recommended action")
	}
}

func TestClassifyCompoundingCritical(t *testing.T) {
	result := Classify("svc", []models.MetricSample{sample(96, 96, 50, 0.01)})

	if result.Severity != models.SeverityCritical {
		t.Fatalf("expected critical severity for two critical-tier metrics, got %s", result.Severity)
	}
	if result.AnomalyType != models.AnomalyCPUSpike {
		t.Fatalf("cpu should win the type priority, got %s", result.AnomalyType)
	}
}

func TestClassifyHealthyWindow(t *testing.T) {
	result := Classify("svc", []models.MetricSample{sample(20, 20, 50, 0.01)})

	if result.HasAnomaly {
		t.Fatalf("expected no anomaly, got %s", result.Reason)
	}
	if result.Severity != models.SeverityNone {
		t.Fatalf("expected severity none, got %s", result.Severity)
	}
	if result.AnomalyType != models.AnomalyNone {
		t.Fatalf("expected type none, got %s", result.AnomalyType)
	}
}

func TestClassifyEmptyWindow(t *testing.T) {
	result := Classify("svc", nil)

	if result.HasAnomaly {
		t.Fatalf("empty window must not be anomalous")
	}
	if result.Reason != "no data available" {
		t.Fatalf("unexpected reason: %q", result.Reason)
	}
	if result.Severity != models.SeverityNone || result.AnomalyType != models.AnomalyNone {
		t.Fatalf("empty window must classify as none/none")
	}
}

func TestClassifySeverityLadder(t *testing.T) {
	cases := []struct {
		name     string
		window   models.MetricSample
		expected models.Severity
	}{
		{"two high tier hits", sample(92, 88, 50, 0.01), models.SeverityHigh},
		{"one high tier hit", sample(92, 40, 50, 0.01), models.SeverityMedium},
		{"elevated latency only", sample(20, 20, 350, 0.01), models.SeverityLow},
		{"elevated error rate only", sample(20, 20, 50, 0.07), models.SeverityLow},
		{"all quiet", sample(20, 20, 50, 0.01), models.SeverityNone},
	}

	for _, tc := range cases {
		result := Classify("svc", []models.MetricSample{tc.window})
		if result.Severity != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, result.Severity)
		}
	}
}

func TestClassifyLowSeverityHasNoType(t *testing.T) {
	result := Classify("svc", []models.MetricSample{sample(20, 20, 350, 0.01)})

	if !result.HasAnomaly {
		t.Fatalf("low severity windows are still anomalous")
	}
	if result.AnomalyType != models.AnomalyNone {
		t.Fatalf("low severity crosses no hard threshold, expected type none, got %s", result.AnomalyType)
	}
}

func TestClassifyMonotonicCPUEscalation(t *testing.T) {
	base := Classify("svc", []models.MetricSample{sample(50, 40, 50, 0.01)})
	spiked := Classify("svc", []models.MetricSample{sample(97, 40, 50, 0.01)})

	if spiked.Severity.Rank() < base.Severity.Rank() {
		t.Fatalf("raising cpu above the critical tier must not lower severity: %s -> %s", base.Severity, spiked.Severity)
	}
}

func TestClassifyTypePriority(t *testing.T) {
	cases := []struct {
		name     string
		window   models.MetricSample
		expected models.AnomalyType
	}{
		{"cpu beats ram", sample(92, 90, 50, 0.01), models.AnomalyCPUSpike},
		{"ram beats latency", sample(20, 90, 700, 0.01), models.AnomalyMemoryLeak},
		{"latency beats errors", sample(20, 20, 700, 0.15), models.AnomalyLatencySurge},
		{"errors alone", sample(20, 20, 50, 0.15), models.AnomalyErrorBurst},
	}

	for _, tc := range cases {
		result := Classify("svc", []models.MetricSample{tc.window})
		if result.AnomalyType != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, result.AnomalyType)
		}
	}
}

func TestClassifyEvidenceAlwaysPresent(t *testing.T) {
	for _, window := range []models.MetricSample{sample(96, 40, 50, 0.01), sample(20, 20, 50, 0.01)} {
		result := Classify("svc", []models.MetricSample{window})
		if len(result.Evidence) != 5 {
			t.Fatalf("expected 4 averages plus sample count, got %d entries", len(result.Evidence))
		}
		if !strings.HasPrefix(result.Evidence[4], "sample_count=") {
			t.Fatalf("expected sample count evidence, got %q", result.Evidence[4])
		}
	}
}

func TestClassifyAveragesOverWindow(t *testing.T) {
	// Two samples averaging to cpu 92: each alone is below the critical
	// tier, the window mean is above the high tier.
	window := []models.MetricSample{sample(90, 40, 50, 0.01), sample(94, 40, 50, 0.01)}
	result := Classify("svc", window)

	if result.AnomalyType != models.AnomalyCPUSpike {
		t.Fatalf("expected cpu_spike from window average, got %s", result.AnomalyType)
	}
	if result.Severity != models.SeverityMedium {
		t.Fatalf("expected medium severity for a single high-tier hit, got %s", result.Severity)
	}
}
