package hygiene

import (
	"fmt"
	"math"
	"time"

	"github.com/sentinelstack/sentinel-ops/internal/models"
)

// Composite weights. They sum to 1.0 so the score stays on the 0-100 scale
// before the final clamp.
const (
	WeightIdle           = 0.25
	WeightAnomaly        = 0.30
	WeightCostRisk       = 0.25
	WeightRestartFailure = 0.20
)

// missingForecastPenalty applies when no cost forecast is supplied.
const missingForecastPenalty = 20.0

var severityPenalties = map[models.Severity]float64{
	models.SeverityNone:     0,
	models.SeverityLow:      5,
	models.SeverityMedium:   15,
	models.SeverityHigh:     30,
	models.SeverityCritical: 50,
}

// Input carries the fleet-wide counts and rates the scorer combines.
type Input struct {
	TotalInstances  int
	IdleInstances   int
	Anomalies       []models.AnomalyResult
	CostForecast    *models.CostForecast
	RestartFailures int
	TotalRestarts   int
}

// Score combines the four risk factors into a weighted 0-100 composite with a
// status tier and per-factor suggestions.
func Score(in Input) models.HygieneScore {
	breakdown := factorScores(in)

	score := breakdown["idle_score"]*WeightIdle +
		breakdown["anomaly_score"]*WeightAnomaly +
		breakdown["cost_risk_score"]*WeightCostRisk +
		breakdown["restart_score"]*WeightRestartFailure
	score = clamp(score, 0, 100)

	return models.HygieneScore{
		Score:        round1(score),
		Status:       classifyStatus(score),
		Breakdown:    breakdown,
		Suggestions:  suggestions(breakdown),
		CalculatedAt: time.Now().UTC(),
	}
}

// factorScores computes each sub-score as 100 minus a penalty, independently
// clamped to [0, 100], plus the raw factors the suggestions draw on.
func factorScores(in Input) map[string]float64 {
	idlePercentage := 0.0
	if in.TotalInstances > 0 {
		idlePercentage = float64(in.IdleInstances) / float64(in.TotalInstances) * 100
	}
	idleScore := clamp(100-idlePercentage, 0, 100)

	anomalyPenalty := 0.0
	anomalyCount := 0
	for _, a := range in.Anomalies {
		if !a.HasAnomaly {
			continue
		}
		anomalyCount++
		anomalyPenalty += severityPenalties[a.Severity]
	}
	if anomalyPenalty > 100 {
		anomalyPenalty = 100
	}
	anomalyScore := clamp(100-anomalyPenalty, 0, 100)

	costPenalty := missingForecastPenalty
	if in.CostForecast != nil {
		costPenalty = (1-in.CostForecast.Confidence)*50 + 10*float64(len(in.CostForecast.RiskFactors))
		if costPenalty > 100 {
			costPenalty = 100
		}
	}
	costRiskScore := clamp(100-costPenalty, 0, 100)

	failureRate := 0.0
	if in.TotalRestarts > 0 {
		failureRate = float64(in.RestartFailures) / float64(in.TotalRestarts) * 100
	}
	restartScore := clamp(100-failureRate, 0, 100)

	return map[string]float64{
		"idle_score":           round1(idleScore),
		"anomaly_score":        round1(anomalyScore),
		"cost_risk_score":      round1(costRiskScore),
		"restart_score":        round1(restartScore),
		"idle_percentage":      round1(idlePercentage),
		"anomaly_count":        float64(anomalyCount),
		"restart_failure_rate": round1(failureRate),
	}
}

// classifyStatus tiers the composite. The boundary at exactly 50 belongs to
// needs_attention, not critical.
func classifyStatus(score float64) models.HygieneStatus {
	switch {
	case score < 50:
		return models.HygieneCritical
	case score <= 75:
		return models.HygieneNeedsAttention
	default:
		return models.HygieneHealthy
	}
}

// suggestions is a fixed rule table evaluated in factor order: idle, anomaly,
// cost, restart. Each factor yields at most one line.
func suggestions(breakdown map[string]float64) []string {
	out := make([]string, 0, 4)

	idlePct := breakdown["idle_percentage"]
	switch {
	case idlePct > 20:
		out = append(out, fmt.Sprintf("Terminate or downsize %.0f%% idle instances to reduce costs", idlePct))
	case idlePct > 10:
		out = append(out, "Review idle instances for potential consolidation")
	}

	anomalyCount := int(breakdown["anomaly_count"])
	switch {
	case anomalyCount > 2:
		out = append(out, fmt.Sprintf("Investigate %d service anomalies immediately", anomalyCount))
	case anomalyCount > 0:
		out = append(out, "Monitor detected anomalies and set up alerting")
	}

	costScore := breakdown["cost_risk_score"]
	switch {
	case costScore < 60:
		out = append(out, "Review cost forecast risk factors and implement budget alerts")
	case costScore < 80:
		out = append(out, "Consider reserved instances for predictable workloads")
	}

	failureRate := breakdown["restart_failure_rate"]
	switch {
	case failureRate > 20:
		out = append(out, "Investigate restart failures - check service dependencies")
	case failureRate > 5:
		out = append(out, "Review restart procedures and health check configurations")
	}

	if len(out) == 0 {
		out = append(out, "Infrastructure is healthy - continue monitoring")
	}
	return out
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
