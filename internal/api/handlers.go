package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/trogers1052/outcome-tracker/internal/backfill"
	"github.com/trogers1052/outcome-tracker/internal/database"
	"github.com/trogers1052/outcome-tracker/internal/health"
	"github.com/trogers1052/outcome-tracker/internal/outcome"
	"github.com/trogers1052/outcome-tracker/internal/pricestore"
	"github.com/trogers1052/outcome-tracker/internal/registry"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db           *database.DB
	prices       *pricestore.Client
	registry     *registry.Registry
	calculator   *outcome.Calculator
	monitor      *health.Monitor
	orchestrator *backfill.Orchestrator
}

// NewHandler creates a new Handler
func NewHandler(db *database.DB, prices *pricestore.Client, reg *registry.Registry,
	calc *outcome.Calculator, monitor *health.Monitor, orch *backfill.Orchestrator) *Handler {
	return &Handler{
		db:           db,
		prices:       prices,
		registry:     reg,
		calculator:   calc,
		monitor:      monitor,
		orchestrator: orch,
	}
}

// GetAllTickers handles GET /api/v1/tickers
func (h *Handler) GetAllTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := h.db.GetAllTickers()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, tickers)
}

// GetTicker handles GET /api/v1/tickers/{symbol}
func (h *Handler) GetTicker(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol := vars["symbol"]

	ticker, err := h.db.GetTicker(symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, ticker)
}

// FetchPrices handles POST /api/v1/prices/{symbol}/fetch
func (h *Handler) FetchPrices(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol, ok := registry.NormalizeSymbol(vars["symbol"])
	if !ok {
		http.Error(w, "invalid symbol", http.StatusBadRequest)
		return
	}

	days := queryInt(r, "days", 90)
	force := r.URL.Query().Get("force") == "true"

	end := pricestore.DateOnly(time.Now())
	start := end.AddDate(0, 0, -days)

	records, err := h.prices.FetchPriceHistory(r.Context(), symbol, start, end, force)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if len(records) > 0 {
		if err := h.registry.UpdatePriceMetadata(symbol); err != nil {
			log.Printf("Warning: metadata update failed for %s: %v", symbol, err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":  symbol,
		"records": len(records),
	})
}

// GetLatestPrice handles GET /api/v1/prices/{symbol}/latest
func (h *Handler) GetLatestPrice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	symbol, ok := registry.NormalizeSymbol(vars["symbol"])
	if !ok {
		http.Error(w, "invalid symbol", http.StatusBadRequest)
		return
	}

	record, err := h.prices.GetLatestPrice(r.Context(), symbol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "no price data for "+symbol, http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// CalculateOutcomes handles POST /api/v1/outcomes/calculate
func (h *Handler) CalculateOutcomes(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	daysBack := queryInt(r, "days_back", 0)
	force := r.URL.Query().Get("force") == "true"

	result, err := h.calculator.CalculateOutcomesForAllPredictions(r.Context(), limit, daysBack, force)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetAccuracy handles GET /api/v1/outcomes/accuracy
func (h *Handler) GetAccuracy(w http.ResponseWriter, r *http.Request) {
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "7d"
	}

	minConfidence := 0.0
	if v := r.URL.Query().Get("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "invalid min_confidence", http.StatusBadRequest)
			return
		}
		minConfidence = f
	}

	stats, err := h.calculator.GetAccuracyStats(timeframe, minConfidence)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// RunBackfill handles POST /api/v1/backfill/run
func (h *Handler) RunBackfill(w http.ResponseWriter, r *http.Request) {
	daysBack := queryInt(r, "days_back", 0)

	var result *backfill.Result
	var err error
	if daysBack > 0 {
		result, err = h.orchestrator.ProcessRecentPredictions(r.Context(), daysBack)
	} else {
		result, err = h.orchestrator.BackfillAllMissing(r.Context())
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetStats handles GET /api/v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	tickerStats, err := h.registry.Stats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	symbols, err := h.db.GetDistinctPriceSymbols()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tickers":             tickerStats,
		"symbols_with_prices": len(symbols),
	})
}

// HealthCheck handles GET /health. Provider canary checks hit external
// APIs, so they run only when requested with ?providers=true.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database unreachable: " + err.Error(),
		})
		return
	}

	checkProviders := r.URL.Query().Get("providers") == "true"
	report := h.monitor.RunHealthCheck(r.Context(), checkProviders, true)

	status := http.StatusOK
	if !report.OverallHealthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, report)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
