package patterns

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/sentinelstack/sentinel-ops/internal/models"
)

// Store abstracts persistence for mined incident patterns.
type Store interface {
	StorePatterns(ctx context.Context, patterns []models.IncidentPattern) error
}

// Loader is implemented by stores that can serve the last persisted pattern
// set, letting a fresh process report history it has not mined itself.
type Loader interface {
	LoadPatterns(ctx context.Context) ([]models.IncidentPattern, error)
}

// Miner mines simple frequency-based incident patterns from the remediation
// event log.
type Miner struct {
	store  Store
	logger *slog.Logger
}

// NewMiner constructs a Miner; store may be nil for dry runs.
func NewMiner(logger *slog.Logger, store Store) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger}
}

// Mine aggregates events per service and returns the resulting patterns,
// busiest services first. An empty event log falls back to the last stored
// set when the store can load one.
func (m *Miner) Mine(ctx context.Context, events []models.RemediationEvent) ([]models.IncidentPattern, error) {
	if len(events) == 0 {
		return m.loadStored(ctx)
	}

	serviceStats := make(map[string]*serviceAggregate)
	for _, event := range events {
		if !event.Anomaly.HasAnomaly {
			continue
		}
		agg := ensureAggregate(serviceStats, event.ServiceID)
		agg.incidents++
		if event.ActionTaken == models.ActionRestart {
			agg.restarts++
		}
		if event.Escalated {
			agg.escalations++
		}
		if event.Anomaly.AnomalyType != models.AnomalyNone {
			agg.typeCounts[event.Anomaly.AnomalyType]++
		}
		if event.Timestamp.After(agg.lastSeen) {
			agg.lastSeen = event.Timestamp
		}
	}

	patterns := make([]models.IncidentPattern, 0, len(serviceStats))
	for service, agg := range serviceStats {
		pattern := models.IncidentPattern{
			ServiceID:    service,
			Incidents:    agg.incidents,
			Restarts:     agg.restarts,
			Escalations:  agg.escalations,
			TypeCounts:   agg.typeCounts,
			DominantType: agg.dominantType(),
			LastSeen:     agg.lastSeen,
		}
		if agg.incidents > 0 {
			pattern.EscalationRate = float64(agg.escalations) / float64(agg.incidents)
		}
		patterns = append(patterns, pattern)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Incidents != patterns[j].Incidents {
			return patterns[i].Incidents > patterns[j].Incidents
		}
		return patterns[i].ServiceID < patterns[j].ServiceID
	})

	if m.store != nil && len(patterns) > 0 {
		if err := m.store.StorePatterns(ctx, patterns); err != nil {
			m.logger.Warn("pattern store failed", slog.Any("error", err))
		}
	}

	return patterns, nil
}

// loadStored serves the last persisted pattern set. A load failure degrades
// to an empty result, same as a store failure degrades to unpersisted mining.
func (m *Miner) loadStored(ctx context.Context) ([]models.IncidentPattern, error) {
	loader, ok := m.store.(Loader)
	if !ok {
		return nil, nil
	}
	patterns, err := loader.LoadPatterns(ctx)
	if err != nil {
		m.logger.Warn("pattern load failed", slog.Any("error", err))
		return nil, nil
	}
	return patterns, nil
}

type serviceAggregate struct {
	incidents   int
	restarts    int
	escalations int
	lastSeen    time.Time
	typeCounts  map[models.AnomalyType]int
}

func ensureAggregate(m map[string]*serviceAggregate, service string) *serviceAggregate {
	if service == "" {
		service = "unknown"
	}
	agg, ok := m[service]
	if !ok {
		agg = &serviceAggregate{typeCounts: make(map[models.AnomalyType]int)}
		m[service] = agg
	}
	return agg
}

// dominantType picks the most frequent anomaly type; ties break alphabetically
// so the result is deterministic.
func (agg *serviceAggregate) dominantType() models.AnomalyType {
	best := models.AnomalyNone
	bestCount := 0
	for anomalyType, count := range agg.typeCounts {
		if count > bestCount || (count == bestCount && string(anomalyType) < string(best)) {
			best = anomalyType
			bestCount = count
		}
	}
	return best
}
