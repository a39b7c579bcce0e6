package models

import "time"

// MetricSample is one observation for a service, produced externally at a
// fixed cadence. Values are never mutated once ingested.
type MetricSample struct {
	Timestamp  time.Time `json:"timestamp"`
	CPU        float64   `json:"cpu"`
	RAM        float64   `json:"ram"`
	LatencyMS  float64   `json:"latency_ms"`
	ErrorRate  float64   `json:"error_rate"`
	NetworkIn  float64   `json:"network_in,omitempty"`
	NetworkOut float64   `json:"network_out,omitempty"`
}
