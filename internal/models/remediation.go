package models

import "time"

// RestartStatus reports the outcome of a restart attempt.
type RestartStatus string

const (
	RestartSuccess RestartStatus = "success"
	RestartFailed  RestartStatus = "failed"
)

// RestartResult is the outcome of one restart attempt reported by the fleet
// backend. PostRestartHealth is on a 0-100 scale and nil when the restart failed.
type RestartResult struct {
	ServiceID         string        `json:"service_id"`
	Status            RestartStatus `json:"status"`
	TimeTakenMS       float64       `json:"time_taken_ms"`
	PostRestartHealth *float64      `json:"post_restart_health,omitempty"`
	Via               string        `json:"via,omitempty"`
	Timestamp         time.Time     `json:"timestamp"`
}

// ActionTaken enumerates the actions the controller can record.
type ActionTaken string

const (
	ActionNone    ActionTaken = "none"
	ActionRestart ActionTaken = "restart"
)

// RemediationEvent is one decision record. Events are append-only; once created
// they are never edited. PostHealth is on a 0.0-1.0 scale and nil when no
// restart was attempted.
type RemediationEvent struct {
	EventID       string         `json:"event_id"`
	ServiceID     string         `json:"service_id"`
	Anomaly       AnomalyResult  `json:"anomaly"`
	ActionTaken   ActionTaken    `json:"action_taken"`
	RestartResult *RestartResult `json:"restart_result,omitempty"`
	PostHealth    *float64       `json:"post_health,omitempty"`
	Escalated     bool           `json:"escalated"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Outcome classifies how a remediation event ended.
type Outcome string

const (
	OutcomeNoAction  Outcome = "no_action"
	OutcomeResolved  Outcome = "resolved"
	OutcomeEscalated Outcome = "escalated"
	OutcomeFailed    Outcome = "failed"
)

// IncidentReport is a read-only view derived from a RemediationEvent, computed
// on demand and never persisted by the engine.
type IncidentReport struct {
	EventID     string      `json:"event_id"`
	ServiceID   string      `json:"service_id"`
	RootCause   string      `json:"root_cause"`
	ActionTaken ActionTaken `json:"action_taken"`
	Outcome     Outcome     `json:"outcome"`
	DurationMS  float64     `json:"duration_ms"`
	GeneratedAt time.Time   `json:"generated_at"`
}
