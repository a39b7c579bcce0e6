package main

import (
	"encoding/json"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mock-fleet simulates the fleet API: per-service metric windows with random
// drift, anomaly injection, restarts, and billing data for local development.

type metricSample struct {
	Timestamp  time.Time `json:"timestamp"`
	CPU        float64   `json:"cpu"`
	RAM        float64   `json:"ram"`
	LatencyMS  float64   `json:"latency_ms"`
	ErrorRate  float64   `json:"error_rate"`
	NetworkIn  float64   `json:"network_in"`
	NetworkOut float64   `json:"network_out"`
}

type serviceState struct {
	Name    string
	Status  string
	Anomaly string // "", cpu_spike, memory_leak, latency_surge, error_burst
}

type fleet struct {
	mu       sync.Mutex
	services map[string]*serviceState
	rng      *rand.Rand
}

func newFleet() *fleet {
	return &fleet{
		services: map[string]*serviceState{
			"svc-web":      {Name: "web frontend", Status: "healthy"},
			"svc-api":      {Name: "api gateway", Status: "healthy"},
			"svc-worker":   {Name: "batch worker", Status: "healthy"},
			"svc-payments": {Name: "payments", Status: "healthy", Anomaly: "cpu_spike"},
		},
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// window generates five samples around a healthy baseline, skewed by the
// service's injected anomaly.
func (f *fleet) window(serviceID string) []metricSample {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.services[serviceID]
	if !ok {
		return nil
	}

	samples := make([]metricSample, 5)
	for i := range samples {
		sample := metricSample{
			Timestamp:  time.Now().Add(time.Duration(i-4) * time.Minute),
			CPU:        30 + f.rng.Float64()*20,
			RAM:        40 + f.rng.Float64()*15,
			LatencyMS:  80 + f.rng.Float64()*60,
			ErrorRate:  f.rng.Float64() * 0.02,
			NetworkIn:  100 + f.rng.Float64()*50,
			NetworkOut: 80 + f.rng.Float64()*40,
		}
		switch state.Anomaly {
		case "cpu_spike":
			sample.CPU = 92 + f.rng.Float64()*7
		case "memory_leak":
			sample.RAM = 90 + f.rng.Float64()*8
		case "latency_surge":
			sample.LatencyMS = 700 + f.rng.Float64()*600
		case "error_burst":
			sample.ErrorRate = 0.12 + f.rng.Float64()*0.15
		}
		samples[i] = sample
	}
	return samples
}

// restart clears any injected anomaly, simulating a recovered service.
func (f *fleet) restart(serviceID string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.services[serviceID]
	if !ok {
		return 0, false
	}
	state.Anomaly = ""
	state.Status = "healthy"
	return time.Duration(150+f.rng.Intn(400)) * time.Millisecond, true
}

func (f *fleet) inject(serviceID, anomaly string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.services[serviceID]
	if !ok {
		return false
	}
	state.Anomaly = anomaly
	state.Status = "degraded"
	return true
}

func main() {
	state := newFleet()
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/v1/fleet/metrics", func(w http.ResponseWriter, r *http.Request) {
		serviceID := r.URL.Query().Get("service_id")
		samples := state.window(serviceID)
		if samples == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"service_id": serviceID, "metrics": samples})
	})

	mux.HandleFunc("/api/v1/fleet/services", func(w http.ResponseWriter, _ *http.Request) {
		state.mu.Lock()
		services := make([]map[string]string, 0, len(state.services))
		for id, svc := range state.services {
			services = append(services, map[string]string{
				"service_id": id,
				"name":       svc.Name,
				"status":     svc.Status,
			})
		}
		state.mu.Unlock()
		writeJSON(w, map[string]any{"services": services})
	})

	mux.HandleFunc("/api/v1/fleet/restart", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			ServiceID string `json:"service_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ServiceID == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		taken, ok := state.restart(req.ServiceID)
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		health := 90.0 + rand.Float64()*10
		writeJSON(w, map[string]any{
			"service_id":          req.ServiceID,
			"status":              "success",
			"time_taken_ms":       float64(taken) / float64(time.Millisecond),
			"post_restart_health": health,
			"via":                 "mock-fleet",
			"timestamp":           time.Now(),
		})
	})

	mux.HandleFunc("/api/v1/fleet/summary", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{
			"total_instances": 40,
			"idle_instances":  6,
		})
	})

	mux.HandleFunc("/api/v1/fleet/forecast", func(w http.ResponseWriter, r *http.Request) {
		month := r.URL.Query().Get("month")
		if month == "" {
			month = time.Now().UTC().Format("2006-01")
		}
		writeJSON(w, map[string]any{
			"month":          month,
			"predicted_cost": 12400.50,
			"confidence":     0.82,
			"narrative":      "Spend is tracking slightly above last month due to worker autoscaling.",
			"breakdown":      map[string]float64{"compute": 9100.00, "storage": 2100.50, "network": 1200.00},
			"risk_factors":   []string{"worker autoscaling burst"},
		})
	})

	// Local testing helper: force an anomaly on a service.
	mux.HandleFunc("/api/v1/fleet/inject", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		serviceID := r.URL.Query().Get("service_id")
		anomaly := r.URL.Query().Get("type")
		if !state.inject(serviceID, anomaly) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{"service_id": serviceID, "anomaly": anomaly})
	})

	logger := log.New(log.Writer(), "mock-fleet ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    ":9090",
		Handler: logRequests(logger, mux),
	}

	logger.Println("listening on :9090")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
