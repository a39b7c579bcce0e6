package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sentinelstack/sentinel-ops/internal/cache"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type stubCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func newStubCache() *stubCache {
	return &stubCache{store: make(map[string][]byte)}
}

func (s *stubCache) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.store[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

func (s *stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = append([]byte(nil), value...)
	return nil
}

func (s *stubCache) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
	return nil
}

func (s *stubCache) Close() error { return nil }

func newTestFleetClient(t *testing.T, cacheProvider cache.Provider, handler func(*http.Request) (*http.Response, error)) *FleetClient {
	t.Helper()
	client := NewFleetClient(
		"https://fleet.example.com",
		"/api/v1/fleet/metrics",
		"/api/v1/fleet/services",
		"/api/v1/fleet/restart",
		"/api/v1/fleet/summary",
		"/api/v1/fleet/forecast",
		time.Second,
		cacheProvider,
		time.Minute,
	)
	client.httpClient = &http.Client{Transport: roundTripFunc(handler)}
	return client
}

func jsonResponse(t *testing.T, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func TestFetchMetrics(t *testing.T) {
	client := newTestFleetClient(t, nil, func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/fleet/metrics" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if got := req.URL.Query().Get("service_id"); got != "svc-web" {
			t.Fatalf("unexpected service_id: %s", got)
		}
		return jsonResponse(t, map[string]any{
			"service_id": "svc-web",
			"metrics": []map[string]any{
				{"timestamp": time.Now(), "cpu": 42.0, "ram": 55.0, "latency_ms": 120.0, "error_rate": 0.02},
			},
		}), nil
	})

	samples, err := client.FetchMetrics(context.Background(), "svc-web")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 || samples[0].CPU != 42.0 {
		t.Fatalf("unexpected samples: %+v", samples)
	}
}

func TestListServicesCachesResults(t *testing.T) {
	hits := 0
	client := newTestFleetClient(t, newStubCache(), func(req *http.Request) (*http.Response, error) {
		hits++
		return jsonResponse(t, map[string]any{
			"services": []map[string]any{
				{"service_id": "svc-web", "name": "web", "status": "healthy"},
				{"service_id": "svc-api", "name": "api", "status": "degraded"},
			},
		}), nil
	})

	ctx := context.Background()
	services, err := client.ListServices(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(services) != 2 || services[0] != "svc-web" {
		t.Fatalf("unexpected services: %v", services)
	}

	if _, err := client.ListServices(ctx); err != nil {
		t.Fatalf("unexpected cached error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("cache miss triggered a second upstream request; hits=%d", hits)
	}
}

func TestRestartParsesResult(t *testing.T) {
	client := newTestFleetClient(t, nil, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", req.Method)
		}
		health := 95.5
		return jsonResponse(t, map[string]any{
			"service_id":          "svc-web",
			"status":              "success",
			"time_taken_ms":       230.0,
			"post_restart_health": health,
			"via":                 "mock-fleet",
			"timestamp":           time.Now(),
		}), nil
	})

	result, err := client.Restart(context.Background(), "svc-web")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "success" || result.PostRestartHealth == nil || *result.PostRestartHealth != 95.5 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRestartRejectsUnknownStatus(t *testing.T) {
	client := newTestFleetClient(t, nil, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(t, map[string]any{"service_id": "svc-web", "status": "maybe"}), nil
	})

	if _, err := client.Restart(context.Background(), "svc-web"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestFetchForecast(t *testing.T) {
	client := newTestFleetClient(t, nil, func(req *http.Request) (*http.Response, error) {
		if got := req.URL.Query().Get("month"); got != "2026-08" {
			t.Fatalf("unexpected month: %s", got)
		}
		return jsonResponse(t, map[string]any{
			"month":          "2026-08",
			"predicted_cost": 1234.5,
			"confidence":     0.75,
			"risk_factors":   []string{"idle spend"},
		}), nil
	})

	forecast, err := client.FetchForecast(context.Background(), "2026-08")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if forecast.Confidence != 0.75 || len(forecast.RiskFactors) != 1 {
		t.Fatalf("unexpected forecast: %+v", forecast)
	}
}

func TestFleetErrorStatus(t *testing.T) {
	client := newTestFleetClient(t, nil, func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Status:     "502 Bad Gateway",
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     make(http.Header),
		}, nil
	})

	if _, err := client.FetchSummary(context.Background()); err == nil {
		t.Fatalf("expected error for upstream failure")
	}
}
