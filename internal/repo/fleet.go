package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sentinelstack/sentinel-ops/internal/cache"
	"github.com/sentinelstack/sentinel-ops/internal/models"
	"github.com/sentinelstack/sentinel-ops/internal/utils"
)

// FleetSummary carries fleet-wide instance counts for the hygiene scorer.
type FleetSummary struct {
	TotalInstances int
	IdleInstances  int
}

// FleetClient talks to the fleet API: metric windows, service enumeration,
// restarts, instance summaries, and billing forecasts. Service lists are
// cached since they change far slower than metrics.
type FleetClient struct {
	baseURL      string
	metricsPath  string
	servicesPath string
	restartPath  string
	summaryPath  string
	forecastPath string
	httpClient   *http.Client
	cache        cache.Provider
	servicesTTL  time.Duration
}

// NewFleetClient constructs a client targeting the configured fleet API.
func NewFleetClient(baseURL, metricsPath, servicesPath, restartPath, summaryPath, forecastPath string, timeout time.Duration, cacheProvider cache.Provider, servicesTTL time.Duration) *FleetClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &FleetClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		metricsPath:  metricsPath,
		servicesPath: servicesPath,
		restartPath:  restartPath,
		summaryPath:  summaryPath,
		forecastPath: forecastPath,
		httpClient:   &http.Client{Timeout: timeout},
		cache:        cacheProvider,
		servicesTTL:  servicesTTL,
	}
}

// FetchMetrics returns the recent metric window for a service.
func (c *FleetClient) FetchMetrics(ctx context.Context, serviceID string) ([]models.MetricSample, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("fleet client not configured")
	}

	var response struct {
		ServiceID string `json:"service_id"`
		Metrics   []struct {
			Timestamp  time.Time `json:"timestamp"`
			CPU        float64   `json:"cpu"`
			RAM        float64   `json:"ram"`
			LatencyMS  float64   `json:"latency_ms"`
			ErrorRate  float64   `json:"error_rate"`
			NetworkIn  float64   `json:"network_in"`
			NetworkOut float64   `json:"network_out"`
		} `json:"metrics"`
	}

	endpoint := c.resolvePath(c.metricsPath) + "?service_id=" + url.QueryEscape(serviceID)
	if err := c.getJSON(ctx, endpoint, &response); err != nil {
		return nil, utils.NewOpError("fleet.metrics", "fleet metrics request failed", err)
	}

	samples := make([]models.MetricSample, 0, len(response.Metrics))
	for _, m := range response.Metrics {
		samples = append(samples, models.MetricSample{
			Timestamp:  m.Timestamp,
			CPU:        m.CPU,
			RAM:        m.RAM,
			LatencyMS:  m.LatencyMS,
			ErrorRate:  m.ErrorRate,
			NetworkIn:  m.NetworkIn,
			NetworkOut: m.NetworkOut,
		})
	}
	return samples, nil
}

// ListServices enumerates the polling universe for the remediation loop.
func (c *FleetClient) ListServices(ctx context.Context) ([]string, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("fleet client not configured")
	}

	const cacheKey = "fleet:services"
	if c.servicesTTL > 0 {
		if data, err := c.cache.Get(ctx, cacheKey); err == nil {
			var cached []string
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var response struct {
		Services []struct {
			ServiceID string `json:"service_id"`
			Name      string `json:"name"`
			Status    string `json:"status"`
		} `json:"services"`
	}
	if err := c.getJSON(ctx, c.resolvePath(c.servicesPath), &response); err != nil {
		return nil, utils.NewOpError("fleet.services", "fleet services request failed", err)
	}

	ids := make([]string, 0, len(response.Services))
	for _, svc := range response.Services {
		if svc.ServiceID != "" {
			ids = append(ids, svc.ServiceID)
		}
	}

	if c.servicesTTL > 0 && len(ids) > 0 {
		if data, err := json.Marshal(ids); err == nil {
			_ = c.cache.Set(ctx, cacheKey, data, c.servicesTTL)
		}
	}
	return ids, nil
}

// Restart asks the fleet backend to restart a service and reports the outcome.
func (c *FleetClient) Restart(ctx context.Context, serviceID string) (*models.RestartResult, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("fleet client not configured")
	}

	payload := map[string]string{"service_id": serviceID}
	var response struct {
		ServiceID         string    `json:"service_id"`
		Status            string    `json:"status"`
		TimeTakenMS       float64   `json:"time_taken_ms"`
		PostRestartHealth *float64  `json:"post_restart_health"`
		Via               string    `json:"via"`
		Timestamp         time.Time `json:"timestamp"`
	}
	if err := c.postJSON(ctx, c.resolvePath(c.restartPath), payload, &response); err != nil {
		return nil, utils.NewOpError("fleet.restart", "fleet restart request failed", err)
	}

	status := models.RestartStatus(response.Status)
	if status != models.RestartSuccess && status != models.RestartFailed {
		return nil, fmt.Errorf("fleet restart returned unknown status %q", response.Status)
	}

	return &models.RestartResult{
		ServiceID:         firstNonEmpty(response.ServiceID, serviceID),
		Status:            status,
		TimeTakenMS:       response.TimeTakenMS,
		PostRestartHealth: response.PostRestartHealth,
		Via:               response.Via,
		Timestamp:         response.Timestamp,
	}, nil
}

// FetchSummary returns fleet-wide instance counts.
func (c *FleetClient) FetchSummary(ctx context.Context) (FleetSummary, error) {
	if c == nil || c.baseURL == "" {
		return FleetSummary{}, fmt.Errorf("fleet client not configured")
	}

	var response struct {
		TotalInstances int `json:"total_instances"`
		IdleInstances  int `json:"idle_instances"`
	}
	if err := c.getJSON(ctx, c.resolvePath(c.summaryPath), &response); err != nil {
		return FleetSummary{}, utils.NewOpError("fleet.summary", "fleet summary request failed", err)
	}
	return FleetSummary{TotalInstances: response.TotalInstances, IdleInstances: response.IdleInstances}, nil
}

// FetchForecast returns the billing forecast for a month (YYYY-MM).
func (c *FleetClient) FetchForecast(ctx context.Context, month string) (*models.CostForecast, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("fleet client not configured")
	}

	var response struct {
		Month         string             `json:"month"`
		PredictedCost float64            `json:"predicted_cost"`
		Confidence    float64            `json:"confidence"`
		Narrative     string             `json:"narrative"`
		Breakdown     map[string]float64 `json:"breakdown"`
		RiskFactors   []string           `json:"risk_factors"`
	}
	endpoint := c.resolvePath(c.forecastPath) + "?month=" + url.QueryEscape(month)
	if err := c.getJSON(ctx, endpoint, &response); err != nil {
		return nil, utils.NewOpError("fleet.forecast", "fleet forecast request failed", err)
	}

	return &models.CostForecast{
		Month:         response.Month,
		PredictedCost: response.PredictedCost,
		Confidence:    response.Confidence,
		Narrative:     response.Narrative,
		Breakdown:     response.Breakdown,
		RiskFactors:   response.RiskFactors,
	}, nil
}

func (c *FleetClient) resolvePath(p string) string {
	if c.baseURL == "" {
		return ""
	}
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *FleetClient) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

func (c *FleetClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req, out)
}

func (c *FleetClient) send(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fleet API returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
