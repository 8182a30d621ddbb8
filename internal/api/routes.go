package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Ticker registry
	api.HandleFunc("/tickers", handler.GetAllTickers).Methods("GET")
	api.HandleFunc("/tickers/{symbol}", handler.GetTicker).Methods("GET")

	// Price operations
	api.HandleFunc("/prices/{symbol}/fetch", handler.FetchPrices).Methods("POST")
	api.HandleFunc("/prices/{symbol}/latest", handler.GetLatestPrice).Methods("GET")

	// Outcome operations
	api.HandleFunc("/outcomes/calculate", handler.CalculateOutcomes).Methods("POST")
	api.HandleFunc("/outcomes/accuracy", handler.GetAccuracy).Methods("GET")

	// Backfill and statistics
	api.HandleFunc("/backfill/run", handler.RunBackfill).Methods("POST")
	api.HandleFunc("/stats", handler.GetStats).Methods("GET")

	return r
}
