// Package metrics exposes Prometheus metrics and a health endpoint for the
// simulation server.
package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the simulation engine.
type Metrics struct {
	SessionsStarted prometheus.Counter
	SessionsActive  prometheus.Gauge
	AdvanceDur      prometheus.Histogram
	FetchDur        prometheus.Histogram

	OrdersFilled  *prometheus.CounterVec // labels: side
	OrdersDropped *prometheus.CounterVec // labels: side, reason

	WSClients prometheus.Gauge
	WSDrops   prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simtrade_sessions_started_total",
			Help: "Total simulation sessions started",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simtrade_sessions_active",
			Help: "Currently active simulation sessions",
		}),
		AdvanceDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simtrade_advance_day_duration_seconds",
			Help:    "AdvanceDay step latency (including the bar fetch)",
			Buckets: prometheus.DefBuckets,
		}),
		FetchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simtrade_bar_fetch_duration_seconds",
			Help:    "Market-data provider fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		OrdersFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simtrade_orders_filled_total",
			Help: "Simulated orders filled (by side)",
		}, []string{"side"}),
		OrdersDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simtrade_orders_dropped_total",
			Help: "Simulated orders dropped (by side and reason)",
		}, []string{"side", "reason"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simtrade_ws_clients",
			Help: "Connected WebSocket clients",
		}),
		WSDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simtrade_ws_dropped_messages_total",
			Help: "WebSocket messages dropped due to slow clients",
		}),
	}

	prometheus.MustRegister(
		m.SessionsStarted, m.SessionsActive, m.AdvanceDur, m.FetchDur,
		m.OrdersFilled, m.OrdersDropped, m.WSClients, m.WSDrops,
	)
	return m
}

// HealthStatus tracks dependency health for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	StartedAt        time.Time
	DataServiceOK    bool
	DataServiceMs    float64
	JournalOK        bool
	LastAdvanceAt    time.Time
	ActiveSessionIDs int
}

// NewHealthStatus creates a health tracker.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

// SetDataService records the outcome of a provider probe.
func (h *HealthStatus) SetDataService(ok bool, latency time.Duration) {
	h.mu.Lock()
	h.DataServiceOK = ok
	h.DataServiceMs = float64(latency.Microseconds()) / 1000.0
	h.mu.Unlock()
}

// SetJournal records journal availability.
func (h *HealthStatus) SetJournal(ok bool) {
	h.mu.Lock()
	h.JournalOK = ok
	h.mu.Unlock()
}

// MarkAdvance records the time of the latest simulation step.
func (h *HealthStatus) MarkAdvance(sessions int) {
	h.mu.Lock()
	h.LastAdvanceAt = time.Now()
	h.ActiveSessionIDs = sessions
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.DataServiceOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	lastAdvance := ""
	if !h.LastAdvanceAt.IsZero() {
		lastAdvance = h.LastAdvanceAt.Format(time.RFC3339)
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		DataServiceOK  bool    `json:"data_service_ok"`
		DataServiceMs  float64 `json:"data_service_latency_ms"`
		JournalOK      bool    `json:"journal_ok"`
		ActiveSessions int     `json:"active_sessions"`
		LastAdvanceAt  string  `json:"last_advance_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		DataServiceOK:  h.DataServiceOK,
		DataServiceMs:  h.DataServiceMs,
		JournalOK:      h.JournalOK,
		ActiveSessions: h.ActiveSessionIDs,
		LastAdvanceAt:  lastAdvance,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
