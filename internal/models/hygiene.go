package models

import "time"

// HygieneStatus tiers the composite score.
type HygieneStatus string

const (
	HygieneCritical       HygieneStatus = "critical"
	HygieneNeedsAttention HygieneStatus = "needs_attention"
	HygieneHealthy        HygieneStatus = "healthy"
)

// HygieneScore is a point-in-time composite of fleet health. Recomputed on
// every invocation; never mutated after construction.
type HygieneScore struct {
	Score        float64            `json:"score"`
	Status       HygieneStatus      `json:"status"`
	Breakdown    map[string]float64 `json:"breakdown"`
	Suggestions  []string           `json:"suggestions"`
	CalculatedAt time.Time          `json:"calculated_at"`
}

// CostForecast is the billing projection consumed by the hygiene scorer.
type CostForecast struct {
	Month         string             `json:"month"`
	PredictedCost float64            `json:"predicted_cost"`
	Confidence    float64            `json:"confidence"`
	Narrative     string             `json:"narrative,omitempty"`
	Breakdown     map[string]float64 `json:"breakdown,omitempty"`
	RiskFactors   []string           `json:"risk_factors,omitempty"`
}
