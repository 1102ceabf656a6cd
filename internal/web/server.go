package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/elys-network/yieldcore/internal/logger"
	"github.com/elys-network/yieldcore/internal/state"
	"github.com/elys-network/yieldcore/internal/types"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	DEFAULT_PORT  = "8080"
	DEFAULT_LIMIT = 20
	MAX_LIMIT     = 100
)

// ReportSource serves persisted cycle reports and payback receipts. Implemented by
// state.PostgresStore.
type ReportSource interface {
	RecentCycleReports(limit int) ([]types.CycleReport, error)
	CycleReport(reportID int64) (*types.CycleReport, error)
	LatestCycleReport() (*types.CycleReport, error)
	RecentPaybackReceipts(limit int) ([]types.PaybackReceipt, error)
	Summary() (*state.StrategySummary, error)
	Healthy() error
}

// StrategyView is the live state of the running strategy.
type StrategyView interface {
	ID() string
	Snapshot() types.ValuationSnapshot
	Parameters() types.StrategyParameters
	Busy() bool
}

// WebServer exposes strategy reports, live valuation and Prometheus metrics over HTTP
type WebServer struct {
	logger   zerolog.Logger
	router   *mux.Router
	port     string
	source   ReportSource
	strategy StrategyView
	started  time.Time
}

// NewWebServer creates a new web server instance. gatherer may be nil to disable /metrics.
func NewWebServer(port string, source ReportSource, strategy StrategyView, gatherer prometheus.Gatherer) *WebServer {
	if port == "" {
		port = DEFAULT_PORT
	}

	server := &WebServer{
		logger:   logger.GetForComponent("web_server"),
		router:   mux.NewRouter(),
		port:     port,
		source:   source,
		strategy: strategy,
		started:  time.Now(),
	}

	server.setupRoutes(gatherer)
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes(gatherer prometheus.Gatherer) {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if gatherer != nil {
		ws.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")
	api.HandleFunc("/cycles/{id:[0-9]+}", ws.handleGetCycle).Methods("GET")
	api.HandleFunc("/paybacks", ws.handleGetPaybacks).Methods("GET")
	api.HandleFunc("/summary", ws.handleGetSummary).Methods("GET")
	api.HandleFunc("/valuation", ws.handleGetValuation).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the router, used by tests and by Start.
func (ws *WebServer) Handler() http.Handler { return ws.router }

// Start starts the web server
func (ws *WebServer) Start() error {
	ws.logger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth reports database reachability and the last work cycle
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	dbHealthy := true
	if err := ws.source.Healthy(); err != nil {
		dbHealthy = false
		hasErrors = true
	}

	cycleInfo := map[string]interface{}{
		"current_cycle":   0,
		"last_cycle_time": nil,
	}
	latest, err := ws.source.LatestCycleReport()
	switch {
	case err == nil:
		cycleInfo["current_cycle"] = latest.CycleNumber
		cycleInfo["last_cycle_time"] = latest.Timestamp
		cycleInfo["last_cycle_earned"] = latest.Earned
		cycleInfo["last_cycle_lost"] = latest.Lost
	case errors.Is(err, state.ErrNotFound):
		// no cycle yet is not an error
	default:
		hasErrors = true
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"strategy_status": map[string]interface{}{
			"strategy_id":      ws.strategy.ID(),
			"busy":             ws.strategy.Busy(),
			"database_healthy": dbHealthy,
			"cycle_info":       cycleInfo,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetCycles returns the most recent cycle reports
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	cycles, err := ws.source.RecentCycleReports(limit)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get recent cycle reports")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	})
}

// handleGetCycle returns a specific cycle report by ID
func (ws *WebServer) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid cycle ID")
		return
	}

	cycle, err := ws.source.CycleReport(id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Cycle not found")
			return
		}
		ws.logger.Error().Err(err).Int64("reportId", id).Msg("Failed to get cycle report")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycle")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetLatestCycle returns the most recent cycle report
func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := ws.source.LatestCycleReport()
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
			return
		}
		ws.logger.Error().Err(err).Msg("Failed to get latest cycle report")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve latest cycle")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

func (ws *WebServer) handleGetPaybacks(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	receipts, err := ws.source.RecentPaybackReceipts(limit)
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get payback receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve paybacks")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"paybacks": receipts,
		"count":    len(receipts),
		"limit":    limit,
	})
}

func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.source.Summary()
	if err != nil {
		ws.logger.Error().Err(err).Msg("Failed to get strategy summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve summary")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetValuation returns the in-memory valuation snapshot
func (ws *WebServer) handleGetValuation(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"valuation": ws.strategy.Snapshot(),
		"busy":      ws.strategy.Busy(),
	})
}

func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"parameters": ws.strategy.Parameters(),
		"timestamp":  time.Now().UTC(),
	})
}

// parseLimit reads ?limit=, falling back to DEFAULT_LIMIT when missing or out of range
func parseLimit(r *http.Request) int {
	limit := DEFAULT_LIMIT
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= MAX_LIMIT {
			limit = parsedLimit
		}
	}
	return limit
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	ws.writeJSONResponse(w, statusCode, map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
