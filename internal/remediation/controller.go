package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelstack/sentinel-ops/internal/config"
	"github.com/sentinelstack/sentinel-ops/internal/metrics"
	"github.com/sentinelstack/sentinel-ops/internal/models"
)

// Restarter issues a restart against the fleet backend.
type Restarter interface {
	Restart(ctx context.Context, serviceID string) (*models.RestartResult, error)
}

// HealthVerifier scores a service's post-restart health on a 0.0-1.0 scale.
type HealthVerifier interface {
	Verify(ctx context.Context, serviceID string) float64
}

// Observer receives a copy of every remediation event after it is recorded.
type Observer func(models.RemediationEvent)

// DefaultHealthThreshold is the post-restart health below which an event
// escalates and the service is suppressed.
const DefaultHealthThreshold = 0.7

// Controller owns the remediation decision state: the append-only event log,
// the per-service suppression map and the global enabled flag. All state is
// mutex-guarded; Remediate may be called concurrently from the loop and from
// API handlers.
type Controller struct {
	restarter Restarter
	verifier  HealthVerifier
	logger    *slog.Logger

	healthThreshold float64
	settleTime      time.Duration
	restartTimeout  time.Duration

	mu         sync.Mutex
	enabled    bool
	suppressed map[string]time.Time
	events     []models.RemediationEvent
	observers  []Observer
}

// NewController wires a controller against a restarter and a health verifier.
func NewController(restarter Restarter, verifier HealthVerifier, cfg config.RemediationConfig, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.HealthThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultHealthThreshold
	}
	return &Controller{
		restarter:       restarter,
		verifier:        verifier,
		logger:          logger,
		healthThreshold: threshold,
		settleTime:      cfg.SettleTime,
		restartTimeout:  cfg.RestartTimeout,
		enabled:         cfg.StartEnabled,
		suppressed:      make(map[string]time.Time),
	}
}

// Remediate runs the workflow for one anomaly and records exactly one event.
// Restarts happen only for high or critical severity while remediation is
// enabled and the service is not suppressed; everything else is recorded as
// action "none". The returned event is already appended to the log.
func (c *Controller) Remediate(ctx context.Context, serviceID string, anomaly models.AnomalyResult) models.RemediationEvent {
	started := time.Now()
	event := models.RemediationEvent{
		EventID:     newEventID(),
		ServiceID:   serviceID,
		Anomaly:     anomaly,
		ActionTaken: models.ActionNone,
		Timestamp:   started,
	}

	switch {
	case !c.IsEnabled():
		c.logger.Debug("remediation disabled, recording no-op", "service_id", serviceID)
	case c.IsSuppressed(serviceID):
		c.logger.Info("service suppressed, skipping restart",
			"service_id", serviceID, "severity", anomaly.Severity)
	case anomaly.Severity != models.SeverityHigh && anomaly.Severity != models.SeverityCritical:
		c.logger.Debug("severity below restart threshold",
			"service_id", serviceID, "severity", anomaly.Severity)
	default:
		c.restart(ctx, serviceID, &event)
	}

	c.record(event)
	metrics.ObserveRemediation(time.Since(started), string(outcomeForModel(event, c.healthThreshold)))
	c.notify(event)
	return event
}

// restart performs the restart plus post-restart health check and fills in the
// event. A restart error is treated as the worst case: post_health 0.0,
// escalated, service suppressed.
func (c *Controller) restart(ctx context.Context, serviceID string, event *models.RemediationEvent) {
	event.ActionTaken = models.ActionRestart

	restartCtx := ctx
	if c.restartTimeout > 0 {
		var cancel context.CancelFunc
		restartCtx, cancel = context.WithTimeout(ctx, c.restartTimeout)
		defer cancel()
	}

	result, err := c.restarter.Restart(restartCtx, serviceID)
	if err != nil {
		zero := 0.0
		event.PostHealth = &zero
		event.Escalated = true
		c.suppress(serviceID)
		c.logger.Error("restart failed, escalating",
			"service_id", serviceID, "error", err)
		return
	}
	event.RestartResult = result

	c.settle(ctx)

	health := c.verifier.Verify(ctx, serviceID)
	event.PostHealth = &health
	event.Escalated = health < c.healthThreshold
	if event.Escalated {
		c.suppress(serviceID)
		c.logger.Warn("post-restart health below threshold, escalating",
			"service_id", serviceID, "post_health", health, "threshold", c.healthThreshold)
		return
	}
	c.logger.Info("remediation resolved",
		"service_id", serviceID, "post_health", health)
}

// settle pauses between the restart and the health check so the service has a
// moment to stabilize. Interruptible by context cancellation.
func (c *Controller) settle(ctx context.Context) {
	if c.settleTime <= 0 {
		return
	}
	timer := time.NewTimer(c.settleTime)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (c *Controller) record(event models.RemediationEvent) {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
}

// notify fans the event out to observers. A panicking observer is logged and
// skipped; it never blocks the remaining observers or corrupts the log.
func (c *Controller) notify(event models.RemediationEvent) {
	c.mu.Lock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, observer := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.ObserveObserverFailure()
					c.logger.Error("event observer panicked",
						"event_id", event.EventID, "panic", fmt.Sprintf("%v", r))
				}
			}()
			observer(event)
		}()
	}
}

func (c *Controller) suppress(serviceID string) {
	c.mu.Lock()
	if _, ok := c.suppressed[serviceID]; !ok {
		c.suppressed[serviceID] = time.Now()
	}
	count := len(c.suppressed)
	c.mu.Unlock()
	metrics.SetSuppressedServices(count)
}

// OnEvent registers an observer that is invoked after each event is recorded.
func (c *Controller) OnEvent(observer Observer) {
	if observer == nil {
		return
	}
	c.mu.Lock()
	c.observers = append(c.observers, observer)
	c.mu.Unlock()
}

// EventLog returns a copy of the append-only event log, oldest first.
func (c *Controller) EventLog() []models.RemediationEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.RemediationEvent, len(c.events))
	copy(out, c.events)
	return out
}

// ClearEventLog drops all recorded events. Suppression state is unaffected.
func (c *Controller) ClearEventLog() {
	c.mu.Lock()
	c.events = nil
	c.mu.Unlock()
}

// Enable turns automatic remediation on.
func (c *Controller) Enable() {
	c.mu.Lock()
	c.enabled = true
	c.mu.Unlock()
}

// Disable turns automatic remediation off. Anomalies are still recorded as
// no-op events while disabled.
func (c *Controller) Disable() {
	c.mu.Lock()
	c.enabled = false
	c.mu.Unlock()
}

// IsEnabled reports whether automatic remediation is currently on.
func (c *Controller) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// IsSuppressed reports whether restarts are currently disabled for a service.
func (c *Controller) IsSuppressed(serviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.suppressed[serviceID]
	return ok
}

// SuppressedServices lists the currently suppressed service IDs, sorted.
func (c *Controller) SuppressedServices() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.suppressed))
	for id := range c.suppressed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ReEnableService clears suppression for a service so the next qualifying
// anomaly may restart it again. Past events are not altered. Returns false if
// the service was not suppressed.
func (c *Controller) ReEnableService(serviceID string) bool {
	c.mu.Lock()
	_, ok := c.suppressed[serviceID]
	if ok {
		delete(c.suppressed, serviceID)
	}
	count := len(c.suppressed)
	c.mu.Unlock()
	metrics.SetSuppressedServices(count)
	if ok {
		c.logger.Info("service re-enabled for remediation", "service_id", serviceID)
	}
	return ok
}

// GenerateIncidentReport derives a read-only report from an event. The
// outcome is judged against the same health threshold the controller
// escalated with, so report and event can never disagree.
func (c *Controller) GenerateIncidentReport(event models.RemediationEvent) models.IncidentReport {
	rootCause := "Unknown"
	if event.Anomaly.HasAnomaly {
		rootCause = fmt.Sprintf("%s: %s", event.Anomaly.AnomalyType, event.Anomaly.Reason)
	}

	var duration float64
	if event.RestartResult != nil {
		duration = event.RestartResult.TimeTakenMS
	}

	return models.IncidentReport{
		EventID:     event.EventID,
		ServiceID:   event.ServiceID,
		RootCause:   rootCause,
		ActionTaken: event.ActionTaken,
		Outcome:     outcomeForModel(event, c.healthThreshold),
		DurationMS:  duration,
		GeneratedAt: time.Now(),
	}
}

func outcomeForModel(event models.RemediationEvent, threshold float64) models.Outcome {
	switch {
	case event.ActionTaken == models.ActionNone:
		return models.OutcomeNoAction
	case event.Escalated:
		return models.OutcomeEscalated
	case event.PostHealth != nil && *event.PostHealth >= threshold:
		return models.OutcomeResolved
	default:
		return models.OutcomeFailed
	}
}

func newEventID() string {
	return uuid.NewString()[:8]
}
