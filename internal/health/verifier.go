package health

import (
	"context"
	"log/slog"

	"github.com/sentinelstack/sentinel-ops/internal/models"
)

// MetricsFetcher supplies recent samples for a service.
type MetricsFetcher interface {
	FetchMetrics(ctx context.Context, serviceID string) ([]models.MetricSample, error)
}

const (
	// recentWindow is how many trailing samples feed the health formula.
	recentWindow = 5

	errorRatePenalty = 2.0
	latencyPenalty   = 0.5
)

// Verifier scores post-action service health in [0.0, 1.0].
type Verifier struct {
	fetcher MetricsFetcher
	logger  *slog.Logger
}

// NewVerifier constructs a Verifier around the metrics collaborator.
func NewVerifier(fetcher MetricsFetcher, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{fetcher: fetcher, logger: logger}
}

// Verify returns a health score from the most recent samples. Any fetch
// failure, including an empty window, scores 0.0: a silent failure must not be
// mistaken for a healthy restart.
func (v *Verifier) Verify(ctx context.Context, serviceID string) float64 {
	if v == nil || v.fetcher == nil {
		return 0.0
	}

	samples, err := v.fetcher.FetchMetrics(ctx, serviceID)
	if err != nil {
		v.logger.Warn("health verification fetch failed", slog.String("service", serviceID), slog.Any("error", err))
		return 0.0
	}
	if len(samples) == 0 {
		return 0.0
	}

	recent := samples
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}

	var avgErrorRate, avgLatencyMS float64
	for _, s := range recent {
		avgErrorRate += s.ErrorRate
		avgLatencyMS += s.LatencyMS
	}
	n := float64(len(recent))
	avgErrorRate /= n
	avgLatencyMS /= n

	health := 1.0 - errorRatePenalty*avgErrorRate - latencyPenalty*(avgLatencyMS/1000.0)
	if health < 0 {
		return 0.0
	}
	if health > 1 {
		return 1.0
	}
	return health
}
