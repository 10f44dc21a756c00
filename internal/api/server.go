// Package api provides the HTTP and WebSocket server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/aegisdesk/aegis/internal/backtest"
	"github.com/aegisdesk/aegis/internal/config"
	"github.com/aegisdesk/aegis/internal/data"
	"github.com/aegisdesk/aegis/internal/metrics"
	"github.com/aegisdesk/aegis/internal/orchestrator"
	"github.com/aegisdesk/aegis/internal/regime"
	"github.com/aegisdesk/aegis/internal/registry"
	"github.com/aegisdesk/aegis/internal/scorer"
	"github.com/aegisdesk/aegis/internal/strategy"
	"github.com/aegisdesk/aegis/pkg/types"
)

// Server is the HTTP/WebSocket API server.
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	cfg        *config.Config
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	clients    map[string]*Client
	store      *data.Store
	metrics    *metrics.Registry
	backtests  map[string]*BacktestState
}

// BacktestState tracks a running or finished backtest.
type BacktestState struct {
	ID       string
	Symbol   string
	Strategy string
	Status   string // running, completed, failed
	Started  time.Time
	Progress types.BacktestProgress
	Result   *types.BacktestResult
	Error    string
}

// BacktestRequest is the body of POST /api/v1/backtest/run.
type BacktestRequest struct {
	ID       string `json:"id,omitempty"`
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"` // trend, meanreversion, ensemble
}

// Message is the WebSocket envelope.
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"` // request, response, event
	Method    string      `json:"method"`
	Payload   interface{} `json:"payload,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewServer creates a new API server.
func NewServer(logger *zap.Logger, cfg *config.Config, store *data.Store, reg *metrics.Registry) *Server {
	s := &Server{
		logger:    logger,
		cfg:       cfg,
		router:    mux.NewRouter(),
		clients:   make(map[string]*Client),
		store:     store,
		metrics:   reg,
		backtests: make(map[string]*BacktestState),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.instrument)

	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/data/symbols", s.handleGetSymbols).Methods("GET")
	s.router.HandleFunc("/api/v1/data/history/{symbol}", s.handleGetHistory).Methods("GET")
	s.router.HandleFunc("/api/v1/data/indicators/{symbol}", s.handleGetIndicators).Methods("GET")

	s.router.HandleFunc("/api/v1/regime/{symbol}", s.handleGetRegime).Methods("GET")

	s.router.HandleFunc("/api/v1/backtest/run", s.handleRunBacktest).Methods("POST")
	s.router.HandleFunc("/api/v1/backtest/{id}", s.handleGetBacktest).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/trades", s.handleGetBacktestTrades).Methods("GET")

	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path,
			promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// instrument records request metrics for every route.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.InFlightInc()
		defer s.metrics.InFlightDec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}
		s.metrics.RecordRequest(r.Method, path, rec.status, time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Router exposes the route table, mainly for tests and route extension.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("Starting API server", zap.String("addr", addr))

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleGetSymbols(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"symbols": s.store.Symbols(),
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	bars, ok := s.store.Get(symbol)
	if !ok {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"symbol": symbol,
		"bars":   bars,
		"count":  len(bars),
	})
}

func (s *Server) handleGetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	bars, ok := s.store.Get(symbol)
	if !ok {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	series := scorer.NewSeries(symbol, bars)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"symbol": symbol,
		"rows":   series.Rows,
		"count":  len(series.Rows),
	})
}

func (s *Server) handleGetRegime(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	bars, ok := s.store.Get(symbol)
	if !ok {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	classifier := regime.NewClassifier(s.logger, s.cfg.ClassifierConfig())
	result := classifier.Classify(bars)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"symbol": symbol,
		"regime": result.Regime.String(),
		"detail": result,
	})
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	bars, ok := s.store.Get(req.Symbol)
	if !ok {
		http.Error(w, "Symbol not found", http.StatusNotFound)
		return
	}

	strat, err := s.buildStrategy(req.Strategy)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state := &BacktestState{
		ID:       req.ID,
		Symbol:   req.Symbol,
		Strategy: req.Strategy,
		Status:   "running",
		Started:  time.Now(),
	}

	s.mu.Lock()
	s.backtests[req.ID] = state
	s.mu.Unlock()

	go s.runBacktest(state, bars, strat)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      req.ID,
		"status":  "running",
		"started": state.Started.Unix(),
	})
}

// buildStrategy constructs the strategy named in the request. The ensemble
// registers both base strategies with their preferred regimes.
func (s *Server) buildStrategy(name string) (strategy.Strategy, error) {
	switch name {
	case "", "trend":
		return strategy.NewTrendFollowing(s.logger, strategy.DefaultTrendConfig()), nil
	case "meanreversion":
		return strategy.NewMeanReversion(s.logger, strategy.DefaultMeanReversionConfig()), nil
	case "ensemble":
		reg := registry.New(s.logger)
		reg.Register("trend",
			strategy.NewTrendFollowing(s.logger, strategy.DefaultTrendConfig()),
			1.0, []types.Regime{types.RegimeBull, types.RegimeBear})
		reg.Register("meanreversion",
			strategy.NewMeanReversion(s.logger, strategy.DefaultMeanReversionConfig()),
			1.0, []types.Regime{types.RegimeSideway})
		classifier := regime.NewClassifier(s.logger, s.cfg.ClassifierConfig())
		return orchestrator.New(s.logger, s.cfg.EnsembleEngineConfig(), reg, classifier), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// runBacktest executes a backtest in the background, streaming progress to
// WebSocket clients and recording the outcome.
func (s *Server) runBacktest(state *BacktestState, bars []types.PriceBar, strat strategy.Strategy) {
	engine := backtest.NewEngine(s.logger, s.cfg.EngineConfig())

	engine.SetProgressCallback(func(p types.BacktestProgress) {
		p.ID = state.ID
		p.Status = "running"

		s.mu.Lock()
		state.Progress = p
		s.mu.Unlock()

		s.broadcast(&Message{
			ID:        uuid.New().String(),
			Type:      "event",
			Method:    "backtest:progress",
			Payload:   p,
			Timestamp: time.Now().UnixMilli(),
		})
	})

	series := scorer.NewSeries(state.Symbol, bars)
	result, err := engine.Run(series, strat)

	s.mu.Lock()
	if err != nil {
		state.Status = "failed"
		state.Error = err.Error()
		s.logger.Error("Backtest failed", zap.String("id", state.ID), zap.Error(err))
	} else {
		state.Status = "completed"
		state.Result = result
	}
	status := state.Status
	s.mu.Unlock()

	s.metrics.RecordBacktest(status, time.Since(state.Started).Seconds())
	if result != nil {
		// Each record is a completed round trip.
		for range result.Trades {
			s.metrics.RecordTrade("buy")
			s.metrics.RecordTrade("sell")
		}
		for i := 0; i < result.RiskStats.StopLossHits; i++ {
			s.metrics.RecordStopLoss()
		}
		for i := 0; i < result.RiskStats.CircuitBreakerHits; i++ {
			s.metrics.RecordBreakerHalt()
		}
	}

	s.broadcast(&Message{
		ID:        uuid.New().String(),
		Type:      "event",
		Method:    "backtest:complete",
		Payload:   map[string]interface{}{"id": state.ID, "status": status},
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	state, ok := s.backtests[id]
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "Backtest not found", http.StatusNotFound)
		return
	}

	s.mu.RLock()
	response := map[string]interface{}{
		"id":       state.ID,
		"symbol":   state.Symbol,
		"strategy": state.Strategy,
		"status":   state.Status,
		"started":  state.Started.Unix(),
	}
	if state.Result != nil {
		response["result"] = state.Result
	}
	if state.Status == "running" {
		response["progress"] = state.Progress
	}
	if state.Error != "" {
		response["error"] = state.Error
	}
	s.mu.RUnlock()

	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleGetBacktestTrades(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	state, ok := s.backtests[id]
	result := (*types.BacktestResult)(nil)
	if ok {
		result = state.Result
	}
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "Backtest not found", http.StatusNotFound)
		return
	}
	if result == nil {
		http.Error(w, "Backtest not complete", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     id,
		"trades": result.Trades,
		"count":  len(result.Trades),
	})
}
