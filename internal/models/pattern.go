package models

import "time"

// IncidentPattern summarises recurring remediation activity for one service,
// mined from the event log.
type IncidentPattern struct {
	ServiceID      string              `json:"service_id"`
	Incidents      int                 `json:"incidents"`
	Restarts       int                 `json:"restarts"`
	Escalations    int                 `json:"escalations"`
	EscalationRate float64             `json:"escalation_rate"`
	TypeCounts     map[AnomalyType]int `json:"type_counts"`
	DominantType   AnomalyType         `json:"dominant_type"`
	LastSeen       time.Time           `json:"last_seen"`
}
