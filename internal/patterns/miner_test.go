package patterns

import (
	"context"
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-ops/internal/cache"
	"github.com/sentinelstack/sentinel-ops/internal/models"
)

func eventAt(serviceID string, anomalyType models.AnomalyType, action models.ActionTaken, escalated bool, ts time.Time) models.RemediationEvent {
	return models.RemediationEvent{
		EventID:   "evt-" + serviceID + ts.Format("150405"),
		ServiceID: serviceID,
		Anomaly: models.AnomalyResult{
			ServiceID:   serviceID,
			HasAnomaly:  true,
			Severity:    models.SeverityHigh,
			AnomalyType: anomalyType,
		},
		ActionTaken: action,
		Escalated:   escalated,
		Timestamp:   ts,
	}
}

func TestMineAggregatesPerService(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	events := []models.RemediationEvent{
		eventAt("svc-web", models.AnomalyCPUSpike, models.ActionRestart, false, base),
		eventAt("svc-web", models.AnomalyCPUSpike, models.ActionRestart, true, base.Add(time.Hour)),
		eventAt("svc-web", models.AnomalyLatencySurge, models.ActionNone, false, base.Add(2*time.Hour)),
		eventAt("svc-api", models.AnomalyErrorBurst, models.ActionRestart, false, base.Add(30*time.Minute)),
	}

	miner := NewMiner(nil, nil)
	patterns, err := miner.Mine(context.Background(), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(patterns))
	}

	web := patterns[0]
	if web.ServiceID != "svc-web" {
		t.Fatalf("busiest service first, got %s", web.ServiceID)
	}
	if web.Incidents != 3 || web.Restarts != 2 || web.Escalations != 1 {
		t.Fatalf("unexpected counts: %+v", web)
	}
	if web.DominantType != models.AnomalyCPUSpike {
		t.Fatalf("dominant type %s, want cpu_spike", web.DominantType)
	}
	if got := web.EscalationRate; got < 0.33 || got > 0.34 {
		t.Fatalf("escalation rate %.3f, want 1/3", got)
	}
	if !web.LastSeen.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("last seen %v", web.LastSeen)
	}
}

func TestMineSkipsNonAnomalyEvents(t *testing.T) {
	events := []models.RemediationEvent{
		{
			EventID:     "evt-1",
			ServiceID:   "svc-web",
			Anomaly:     models.AnomalyResult{ServiceID: "svc-web", HasAnomaly: false},
			ActionTaken: models.ActionNone,
			Timestamp:   time.Now(),
		},
	}

	miner := NewMiner(nil, nil)
	patterns, err := miner.Mine(context.Background(), events)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(patterns) != 0 {
		t.Fatalf("healthy events must not mint patterns, got %d", len(patterns))
	}
}

func TestMineEmptyLog(t *testing.T) {
	miner := NewMiner(nil, nil)
	patterns, err := miner.Mine(context.Background(), nil)
	if err != nil || patterns != nil {
		t.Fatalf("expected nil, nil for empty log, got %v, %v", patterns, err)
	}
}

func TestMineInvokesStore(t *testing.T) {
	stored := 0
	store := StoreFunc(func(_ context.Context, patterns []models.IncidentPattern) error {
		stored = len(patterns)
		return nil
	})

	events := []models.RemediationEvent{
		eventAt("svc-web", models.AnomalyCPUSpike, models.ActionRestart, false, time.Now()),
	}
	miner := NewMiner(nil, store)
	if _, err := miner.Mine(context.Background(), events); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 1 {
		t.Fatalf("store received %d patterns, want 1", stored)
	}
}

type memoryProvider struct {
	data map[string][]byte
}

func (m *memoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	if b, ok := m.data[key]; ok {
		return b, nil
	}
	return nil, cache.ErrCacheMiss
}

func (m *memoryProvider) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = value
	return nil
}

func (m *memoryProvider) Del(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *memoryProvider) Close() error { return nil }

func TestMineEmptyLogServesStoredPatterns(t *testing.T) {
	store := NewCacheStore(&memoryProvider{}, time.Minute)
	miner := NewMiner(nil, store)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mined, err := miner.Mine(context.Background(), []models.RemediationEvent{
		eventAt("svc-web", models.AnomalyCPUSpike, models.ActionRestart, false, base),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mined) != 1 {
		t.Fatalf("expected 1 mined pattern, got %d", len(mined))
	}

	// A fresh event log, same store: history must survive.
	loaded, err := miner.Mine(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ServiceID != "svc-web" {
		t.Fatalf("expected stored svc-web pattern, got %+v", loaded)
	}
	if !loaded[0].LastSeen.Equal(base) {
		t.Fatalf("last seen %s, want %s", loaded[0].LastSeen, base)
	}
}

func TestMineEmptyLogWithoutLoader(t *testing.T) {
	stored := 0
	miner := NewMiner(nil, StoreFunc(func(context.Context, []models.IncidentPattern) error {
		stored++
		return nil
	}))

	patterns, err := miner.Mine(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if patterns != nil || stored != 0 {
		t.Fatalf("store-only backend must yield no patterns for an empty log, got %+v", patterns)
	}
}
