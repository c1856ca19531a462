package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"simtrade/internal/indicator"
	"simtrade/internal/metrics"
	"simtrade/internal/model"
	"simtrade/internal/sim"
	"simtrade/internal/store/sqlite"
)

// Server drives one simulation session over HTTP. The engine is single-user
// by design; the mutex serializes transitions so a second advance cannot
// start while a fetch is in flight.
type Server struct {
	mu       sync.Mutex
	provider model.MarketData
	costs    sim.Costs
	journal  *sqlite.Journal // nil = no audit journal
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	hub      *Hub

	session *sim.State
}

// NewServer wires the gateway. journal, metrics and health may be nil.
func NewServer(provider model.MarketData, costs sim.Costs, journal *sqlite.Journal,
	m *metrics.Metrics, health *metrics.HealthStatus) *Server {
	return &Server{
		provider: provider,
		costs:    costs,
		journal:  journal,
		metrics:  m,
		health:   health,
		hub:      NewHub(m),
	}
}

// Router sets up HTTP routes for the gateway.
func (s *Server) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.HandleFunc("/api/v1/session", s.handleSession)
	mux.HandleFunc("/api/v1/orders/buy", s.handleBuy)
	mux.HandleFunc("/api/v1/orders/sell", s.handleSell)
	mux.HandleFunc("/api/v1/orders/cancel", s.handleCancel)
	mux.HandleFunc("/api/v1/advance", s.handleAdvance)
	mux.HandleFunc("/api/v1/indicators/macd", s.handleMACD)
	mux.HandleFunc("/api/v1/indicators/kdj", s.handleKDJ)
	mux.HandleFunc("/api/v1/stream", s.hub.HandleWS)

	return mux
}

// sessionView is the wire representation of the session plus derived values.
type sessionView struct {
	sim.State
	MarketValue float64 `json:"market_value"`
	TotalEquity float64 `json:"total_equity"`
	YieldPct    float64 `json:"yield_pct"`
	CanAdvance  bool    `json:"can_advance"`
	NextDate    string  `json:"next_date,omitempty"`
	CurrentDate string  `json:"current_date"`
}

func viewOf(st sim.State) sessionView {
	next, _ := st.NextDate()
	return sessionView{
		State:       st,
		MarketValue: sim.MarketValue(st),
		TotalEquity: sim.TotalEquity(st),
		YieldPct:    sim.YieldPct(st),
		CanAdvance:  st.CanAdvance(),
		NextDate:    next,
		CurrentDate: st.CurrentDate(),
	}
}

type startRequest struct {
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	InitialCash float64 `json:"initial_cash"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		st, err := sim.New(r.Context(), s.provider, req.StartDate, req.EndDate, req.InitialCash)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		s.mu.Lock()
		s.session = &st
		s.mu.Unlock()

		if s.metrics != nil {
			s.metrics.SessionsStarted.Inc()
			s.metrics.SessionsActive.Set(1)
		}
		log.Printf("[gateway] session %s started: %s..%s cash=%.2f",
			st.SessionID, req.StartDate, req.EndDate, req.InitialCash)

		s.hub.Broadcast("session_started", viewOf(st))
		writeJSON(w, http.StatusCreated, viewOf(st))

	case http.MethodGet:
		st, ok := s.currentSession()
		if !ok {
			writeError(w, http.StatusNotFound, "no active session")
			return
		}
		writeJSON(w, http.StatusOK, viewOf(st))

	case http.MethodDelete:
		s.mu.Lock()
		s.session = nil
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.SessionsActive.Set(0)
		}
		s.hub.Broadcast("session_reset", nil)
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type buyRequest struct {
	Symbol string `json:"symbol"`
	Qty    int64  `json:"qty"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol and qty required")
		return
	}

	s.transition(w, func(st sim.State) (sim.State, error) {
		return st.EnqueueBuy(req.Symbol, req.Qty)
	})
}

type sellRequest struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}

	s.transition(w, func(st sim.State) (sim.State, error) {
		return st.EnqueueSell(req.Symbol)
	})
}

type cancelRequest struct {
	Side   string `json:"side"` // BUY or SELL
	Symbol string `json:"symbol"`
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "side and symbol required")
		return
	}
	if req.Side != string(sim.SideBuy) && req.Side != string(sim.SideSell) {
		writeError(w, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}

	s.transition(w, func(st sim.State) (sim.State, error) {
		if req.Side == string(sim.SideBuy) {
			return st.CancelBuy(req.Symbol), nil
		}
		return st.CancelSell(req.Symbol), nil
	})
}

// advanceResponse pairs the new state with the step's diagnostics, so the
// UI can show why an order vanished instead of guessing.
type advanceResponse struct {
	Session sessionView   `json:"session"`
	Report  sim.DayReport `json:"report"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	if !s.session.CanAdvance() {
		writeError(w, http.StatusConflict, "already at the last trading day")
		return
	}

	start := time.Now()
	ns, report, err := sim.AdvanceDay(r.Context(), s.provider, *s.session, s.costs)
	if s.metrics != nil {
		s.metrics.AdvanceDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		// State unchanged; the caller may retry the step.
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.session = &ns
	s.recordStep(ns.SessionID, report)

	resp := advanceResponse{Session: viewOf(ns), Report: report}
	s.hub.Broadcast("day_advanced", resp)
	writeJSON(w, http.StatusOK, resp)
}

// recordStep journals outcomes and updates counters after a committed step.
func (s *Server) recordStep(sessionID string, report sim.DayReport) {
	if s.metrics != nil {
		for _, res := range report.Results {
			if res.Filled() {
				s.metrics.OrdersFilled.WithLabelValues(string(res.Side)).Inc()
			} else {
				s.metrics.OrdersDropped.WithLabelValues(string(res.Side), string(res.Outcome)).Inc()
			}
		}
	}
	if s.health != nil {
		s.health.MarkAdvance(1)
	}
	if s.journal != nil {
		if err := s.journal.RecordDay(sessionID, report); err != nil {
			log.Printf("[gateway] journal write failed: %v", err)
		}
	}
}

type indicatorRequest struct {
	Bars []model.Bar `json:"bars"`
	// MACD params
	Fast   int `json:"fast,omitempty"`
	Slow   int `json:"slow,omitempty"`
	Signal int `json:"signal,omitempty"`
	// KDJ params
	N       int `json:"n,omitempty"`
	KPeriod int `json:"k_period,omitempty"`
	DPeriod int `json:"d_period,omitempty"`
}

func (s *Server) handleMACD(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req indicatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, indicator.MACD(req.Bars, req.Fast, req.Slow, req.Signal))
}

func (s *Server) handleKDJ(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req indicatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	writeJSON(w, http.StatusOK, indicator.KDJ(req.Bars, req.N, req.KPeriod, req.DPeriod))
}

// transition applies a queue operation under the session lock and responds
// with the updated view.
func (s *Server) transition(w http.ResponseWriter, fn func(sim.State) (sim.State, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}

	ns, err := fn(*s.session)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	s.session = &ns

	view := viewOf(ns)
	s.hub.Broadcast("queues_updated", view)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) currentSession() (sim.State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return sim.State{}, false
	}
	return *s.session, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sim.ErrInvalidDateRange),
		errors.Is(err, sim.ErrNonPositiveCash),
		errors.Is(err, sim.ErrEmptyCalendar),
		errors.Is(err, sim.ErrBelowLot),
		errors.Is(err, sim.ErrNoPosition):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
