package classifier

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sentinelstack/sentinel-ops/internal/models"
)

// RuleEngine applies operator-authored runbook rules that override the
// classifier's default recommended action for matching anomalies.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule maps an anomaly shape onto a runbook action.
type Rule struct {
	ID     string    `yaml:"id"`
	Match  RuleMatch `yaml:"match"`
	Action string    `yaml:"action"`
}

// RuleMatch defines optional attributes for rule matching. Empty fields match
// everything.
type RuleMatch struct {
	Service        string   `yaml:"service"`
	AnomalyType    string   `yaml:"anomaly_type"`
	MinSeverity    string   `yaml:"min_severity"`
	ReasonContains []string `yaml:"reason_contains"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from the provided path. An empty path or a missing
// file yields a nil engine, which matches nothing.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Recommend returns the runbook action of the first rule matching the anomaly.
func (e *RuleEngine) Recommend(anomaly models.AnomalyResult) (string, bool) {
	if e == nil || !anomaly.HasAnomaly {
		return "", false
	}

	for _, rule := range e.rules {
		if rule.Action == "" {
			continue
		}
		if rule.Match.Service != "" && !strings.EqualFold(rule.Match.Service, anomaly.ServiceID) {
			continue
		}
		if rule.Match.AnomalyType != "" && !strings.EqualFold(rule.Match.AnomalyType, string(anomaly.AnomalyType)) {
			continue
		}
		if rule.Match.MinSeverity != "" && anomaly.Severity.Rank() < models.Severity(strings.ToLower(rule.Match.MinSeverity)).Rank() {
			continue
		}
		if len(rule.Match.ReasonContains) > 0 && !reasonContains(rule.Match.ReasonContains, anomaly.Reason) {
			continue
		}
		e.logger.Debug("runbook rule matched",
			slog.String("rule_id", rule.ID), slog.String("service_id", anomaly.ServiceID))
		return rule.Action, true
	}
	return "", false
}

func reasonContains(keywords []string, reason string) bool {
	lowered := strings.ToLower(reason)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
