package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-ops/internal/config"
	"github.com/sentinelstack/sentinel-ops/internal/models"
	"github.com/sentinelstack/sentinel-ops/internal/patterns"
	"github.com/sentinelstack/sentinel-ops/internal/remediation"
	"github.com/sentinelstack/sentinel-ops/internal/repo"
	"github.com/sentinelstack/sentinel-ops/internal/services"
)

type fakeFleet struct {
	samples map[string][]models.MetricSample
}

func (f *fakeFleet) FetchMetrics(_ context.Context, serviceID string) ([]models.MetricSample, error) {
	return f.samples[serviceID], nil
}

func (f *fakeFleet) ListServices(context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.samples))
	for id := range f.samples {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeFleet) FetchSummary(context.Context) (repo.FleetSummary, error) {
	return repo.FleetSummary{TotalInstances: 10, IdleInstances: 1}, nil
}

func (f *fakeFleet) FetchForecast(context.Context, string) (*models.CostForecast, error) {
	return &models.CostForecast{Month: "2026-08", PredictedCost: 900, Confidence: 0.9}, nil
}

func (f *fakeFleet) Restart(_ context.Context, serviceID string) (*models.RestartResult, error) {
	health := 95.0
	return &models.RestartResult{
		ServiceID:         serviceID,
		Status:            models.RestartSuccess,
		TimeTakenMS:       180,
		PostRestartHealth: &health,
		Timestamp:         time.Now(),
	}, nil
}

type stubVerifier struct{ score float64 }

func (v *stubVerifier) Verify(context.Context, string) float64 { return v.score }

func hotWindow() []models.MetricSample {
	samples := make([]models.MetricSample, 5)
	for i := range samples {
		samples[i] = models.MetricSample{
			Timestamp: time.Now(),
			CPU:       96,
			RAM:       50,
			LatencyMS: 100,
			ErrorRate: 0.01,
		}
	}
	return samples
}

func newTestServer(verifier *stubVerifier) *Server {
	fleet := &fakeFleet{samples: map[string][]models.MetricSample{"svc-web": hotWindow()}}
	cfg := config.RemediationConfig{
		SettleTime:      0,
		RestartTimeout:  time.Second,
		HealthThreshold: 0.7,
		StartEnabled:    true,
	}
	controller := remediation.NewController(fleet, verifier, cfg, nil)
	service := services.NewOpsService(nil, fleet, controller, patterns.NewMiner(nil, nil), nil, nil, 0)
	return NewServer(config.ServerConfig{Address: ":0"}, service, nil)
}

func doRequest(t *testing.T, server *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	var payload map[string]any
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
			t.Fatalf("invalid JSON response: %v", err)
		}
	}
	return recorder, payload
}

func TestRemediateEndpoint(t *testing.T) {
	server := newTestServer(&stubVerifier{score: 0.95})

	recorder, payload := doRequest(t, server, http.MethodPost, "/api/v1/remediate", `{"service_id":"svc-web"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d: %s", recorder.Code, recorder.Body.String())
	}
	data := payload["data"].(map[string]any)
	if data["action_taken"] != "restart" {
		t.Fatalf("unexpected action: %v", data["action_taken"])
	}
	if data["escalated"] != false {
		t.Fatalf("unexpected escalation: %v", data["escalated"])
	}
}

func TestRemediateEndpointRequiresServiceID(t *testing.T) {
	server := newTestServer(&stubVerifier{score: 0.95})

	recorder, _ := doRequest(t, server, http.MethodPost, "/api/v1/remediate", `{}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", recorder.Code)
	}
}

func TestEventLogEndpoints(t *testing.T) {
	server := newTestServer(&stubVerifier{score: 0.95})

	doRequest(t, server, http.MethodPost, "/api/v1/remediate", `{"service_id":"svc-web"}`)

	recorder, payload := doRequest(t, server, http.MethodGet, "/api/v1/events", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d", recorder.Code)
	}
	data := payload["data"].(map[string]any)
	if data["count"].(float64) != 1 {
		t.Fatalf("event count %v, want 1", data["count"])
	}

	events := data["events"].([]any)
	eventID := events[0].(map[string]any)["event_id"].(string)

	recorder, payload = doRequest(t, server, http.MethodGet, "/api/v1/events/"+eventID+"/report", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("report status %d", recorder.Code)
	}
	report := payload["data"].(map[string]any)
	if report["outcome"] != "resolved" {
		t.Fatalf("outcome %v, want resolved", report["outcome"])
	}

	recorder, _ = doRequest(t, server, http.MethodGet, "/api/v1/events/missing/report", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("missing event returned %d, want 404", recorder.Code)
	}

	recorder, _ = doRequest(t, server, http.MethodDelete, "/api/v1/events", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("clear status %d", recorder.Code)
	}
	_, payload = doRequest(t, server, http.MethodGet, "/api/v1/events", "")
	if payload["data"].(map[string]any)["count"].(float64) != 0 {
		t.Fatalf("event log not cleared")
	}
}

func TestRemediationToggleEndpoints(t *testing.T) {
	server := newTestServer(&stubVerifier{score: 0.95})

	recorder, _ := doRequest(t, server, http.MethodPost, "/api/v1/remediation/disable", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("disable status %d", recorder.Code)
	}

	_, payload := doRequest(t, server, http.MethodGet, "/api/v1/remediation/status", "")
	data := payload["data"].(map[string]any)
	if data["enabled"] != false {
		t.Fatalf("expected remediation disabled")
	}

	// Disabled controller records a no-op event.
	_, payload = doRequest(t, server, http.MethodPost, "/api/v1/remediate", `{"service_id":"svc-web"}`)
	if payload["data"].(map[string]any)["action_taken"] != "none" {
		t.Fatalf("disabled controller must not restart")
	}

	doRequest(t, server, http.MethodPost, "/api/v1/remediation/enable", "")
	_, payload = doRequest(t, server, http.MethodGet, "/api/v1/remediation/status", "")
	if payload["data"].(map[string]any)["enabled"] != true {
		t.Fatalf("expected remediation enabled")
	}
}

func TestSuppressionEndpoints(t *testing.T) {
	server := newTestServer(&stubVerifier{score: 0.4})

	doRequest(t, server, http.MethodPost, "/api/v1/remediate", `{"service_id":"svc-web"}`)

	_, payload := doRequest(t, server, http.MethodGet, "/api/v1/services/suppressed", "")
	suppressed := payload["data"].(map[string]any)["services"].([]any)
	if len(suppressed) != 1 || suppressed[0] != "svc-web" {
		t.Fatalf("unexpected suppressed list: %v", suppressed)
	}

	recorder, _ := doRequest(t, server, http.MethodPost, "/api/v1/services/svc-web/reenable", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("reenable status %d", recorder.Code)
	}

	recorder, _ = doRequest(t, server, http.MethodPost, "/api/v1/services/svc-web/reenable", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("second reenable returned %d, want 404", recorder.Code)
	}
}

func TestHygieneEndpoint(t *testing.T) {
	server := newTestServer(&stubVerifier{score: 0.95})

	recorder, payload := doRequest(t, server, http.MethodGet, "/api/v1/hygiene", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d", recorder.Code)
	}
	data := payload["data"].(map[string]any)
	if _, ok := data["score"]; !ok {
		t.Fatalf("missing score in %v", data)
	}
	if data["status"] == "" {
		t.Fatalf("missing status tier")
	}
}

func TestPatternsEndpoint(t *testing.T) {
	server := newTestServer(&stubVerifier{score: 0.95})

	doRequest(t, server, http.MethodPost, "/api/v1/remediate", `{"service_id":"svc-web"}`)

	recorder, payload := doRequest(t, server, http.MethodGet, "/api/v1/patterns", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d", recorder.Code)
	}
	data := payload["data"].(map[string]any)
	if data["count"].(float64) != 1 {
		t.Fatalf("pattern count %v, want 1", data["count"])
	}
}

func TestHealthzEndpoint(t *testing.T) {
	server := newTestServer(&stubVerifier{score: 0.95})

	recorder, payload := doRequest(t, server, http.MethodGet, "/healthz", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status %d", recorder.Code)
	}
	if payload["status"] != "healthy" {
		t.Fatalf("unexpected health payload: %v", payload)
	}
}
