package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sentinelstack/sentinel-ops/internal/cache"
	"github.com/sentinelstack/sentinel-ops/internal/classifier"
	"github.com/sentinelstack/sentinel-ops/internal/hygiene"
	"github.com/sentinelstack/sentinel-ops/internal/metrics"
	"github.com/sentinelstack/sentinel-ops/internal/models"
	"github.com/sentinelstack/sentinel-ops/internal/patterns"
	"github.com/sentinelstack/sentinel-ops/internal/remediation"
	"github.com/sentinelstack/sentinel-ops/internal/repo"
	"github.com/sentinelstack/sentinel-ops/internal/utils"
)

// Fleet defines the fleet API operations the service layer depends on.
type Fleet interface {
	FetchMetrics(ctx context.Context, serviceID string) ([]models.MetricSample, error)
	ListServices(ctx context.Context) ([]string, error)
	FetchSummary(ctx context.Context) (repo.FleetSummary, error)
	FetchForecast(ctx context.Context, month string) (*models.CostForecast, error)
}

const hygieneCacheKey = "hygiene:snapshot"

// OpsService is the orchestration facade: it ties fleet data, the anomaly
// classifier, the remediation controller, the pattern miner and the hygiene
// scorer together for the serving layer and the background loop.
type OpsService struct {
	logger     *slog.Logger
	fleet      Fleet
	controller *remediation.Controller
	miner      *patterns.Miner
	rules      *classifier.RuleEngine
	cache      cache.Provider
	hygieneTTL time.Duration
	latencies  *utils.LatencyTracker
}

// NewOpsService constructs the facade. cacheProvider may be nil to disable
// hygiene snapshot caching; rules may be nil when no runbook pack is loaded.
func NewOpsService(logger *slog.Logger, fleet Fleet, controller *remediation.Controller, miner *patterns.Miner, rules *classifier.RuleEngine, cacheProvider cache.Provider, hygieneTTL time.Duration) *OpsService {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &OpsService{
		logger:     logger,
		fleet:      fleet,
		controller: controller,
		miner:      miner,
		rules:      rules,
		cache:      cacheProvider,
		hygieneTTL: hygieneTTL,
		latencies:  utils.NewLatencyTracker(1024),
	}
}

// Controller exposes the remediation controller for toggle and suppression
// operations.
func (s *OpsService) Controller() *remediation.Controller {
	return s.controller
}

// CheckService fetches the current metric window for one service and
// classifies it.
func (s *OpsService) CheckService(ctx context.Context, serviceID string) (models.AnomalyResult, error) {
	samples, err := s.fleet.FetchMetrics(ctx, serviceID)
	if err != nil {
		return models.AnomalyResult{}, fmt.Errorf("fetch metrics for %s: %w", serviceID, err)
	}

	anomaly := classifier.Classify(serviceID, samples)
	if action, ok := s.rules.Recommend(anomaly); ok {
		anomaly.RecommendedAction = action
	}
	if anomaly.HasAnomaly {
		metrics.ObserveAnomaly(string(anomaly.Severity))
		s.logger.Info("anomaly detected",
			slog.String("service_id", serviceID),
			slog.String("severity", string(anomaly.Severity)),
			slog.String("anomaly_type", string(anomaly.AnomalyType)))
	}
	return anomaly, nil
}

// RemediateService runs the full check-then-remediate workflow for one
// service, as triggered by a manual "remediate now" action.
func (s *OpsService) RemediateService(ctx context.Context, serviceID string) (models.RemediationEvent, error) {
	start := time.Now()
	anomaly, err := s.CheckService(ctx, serviceID)
	if err != nil {
		return models.RemediationEvent{}, err
	}

	event := s.controller.Remediate(ctx, serviceID, anomaly)
	duration := time.Since(start)
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("remediation latency",
			slog.Duration("p95", s.latencies.Percentile(95)),
			slog.Int("samples", count))
	}
	return event, nil
}

// CheckAllServices sweeps the whole fleet once, feeding every detected anomaly
// to the controller in enumeration order. A failure for one service is logged
// and skipped; it never aborts the sweep.
func (s *OpsService) CheckAllServices(ctx context.Context) error {
	serviceIDs, err := s.fleet.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}

	for _, serviceID := range serviceIDs {
		anomaly, err := s.CheckService(ctx, serviceID)
		if err != nil {
			metrics.ObserveTickError()
			s.logger.Warn("service check failed, skipping",
				slog.String("service_id", serviceID), slog.Any("error", err))
			continue
		}
		if !anomaly.HasAnomaly {
			continue
		}
		s.controller.Remediate(ctx, serviceID, anomaly)
	}
	return nil
}

// HygieneSnapshot computes the composite fleet hygiene score, serving a cached
// snapshot when one is fresh enough.
func (s *OpsService) HygieneSnapshot(ctx context.Context) (models.HygieneScore, error) {
	if s.hygieneTTL > 0 {
		if data, err := s.cache.Get(ctx, hygieneCacheKey); err == nil {
			var cached models.HygieneScore
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	summary, err := s.fleet.FetchSummary(ctx)
	if err != nil {
		return models.HygieneScore{}, fmt.Errorf("fleet summary: %w", err)
	}

	serviceIDs, err := s.fleet.ListServices(ctx)
	if err != nil {
		return models.HygieneScore{}, fmt.Errorf("list services: %w", err)
	}

	anomalies := make([]models.AnomalyResult, 0, len(serviceIDs))
	for _, serviceID := range serviceIDs {
		anomaly, err := s.CheckService(ctx, serviceID)
		if err != nil {
			s.logger.Warn("hygiene sweep skipped a service",
				slog.String("service_id", serviceID), slog.Any("error", err))
			continue
		}
		anomalies = append(anomalies, anomaly)
	}

	// A missing forecast is scored as a risk by the hygiene model, so a
	// billing API failure degrades the score rather than failing the call.
	forecast, err := s.fleet.FetchForecast(ctx, time.Now().UTC().Format("2006-01"))
	if err != nil {
		s.logger.Warn("cost forecast unavailable", slog.Any("error", err))
		forecast = nil
	}

	totalRestarts, restartFailures := s.restartCounters()

	score := hygiene.Score(hygiene.Input{
		TotalInstances:  summary.TotalInstances,
		IdleInstances:   summary.IdleInstances,
		Anomalies:       anomalies,
		CostForecast:    forecast,
		RestartFailures: restartFailures,
		TotalRestarts:   totalRestarts,
	})
	metrics.SetHygieneScore(score.Score)

	if s.hygieneTTL > 0 {
		if data, err := json.Marshal(score); err == nil {
			if err := s.cache.Set(ctx, hygieneCacheKey, data, s.hygieneTTL); err != nil {
				s.logger.Debug("hygiene snapshot cache write failed", slog.Any("error", err))
			}
		}
	}
	return score, nil
}

// restartCounters derives restart attempt and failure totals from the event
// log. A restart counts as failed when it escalated or the backend reported
// failure.
func (s *OpsService) restartCounters() (total, failures int) {
	for _, event := range s.controller.EventLog() {
		if event.ActionTaken != models.ActionRestart {
			continue
		}
		total++
		if event.Escalated || (event.RestartResult != nil && event.RestartResult.Status == models.RestartFailed) {
			failures++
		}
	}
	return total, failures
}

// Patterns mines incident patterns from the current event log.
func (s *OpsService) Patterns(ctx context.Context) ([]models.IncidentPattern, error) {
	if s.miner == nil {
		return nil, nil
	}
	return s.miner.Mine(ctx, s.controller.EventLog())
}

// LatencyP95 returns the current p95 remediation workflow latency.
func (s *OpsService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
