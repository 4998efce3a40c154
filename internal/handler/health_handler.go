package handler

import (
	"context"
	"net/http"
	"time"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"

	"github.com/gorilla/mux"
)

type DatabaseChecker interface {
	Health(ctx context.Context) error
}

type BrokerChecker interface {
	IsConnected() bool
}

type LedgerChecker interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db     DatabaseChecker
	broker BrokerChecker
	ledger LedgerChecker
	log    *logger.Logger
}

// NewHealthHandler builds the handler. broker is nil when MQTT is disabled.
func NewHealthHandler(db DatabaseChecker, broker BrokerChecker, ledger LedgerChecker, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		broker: broker,
		ledger: ledger,
		log:    log,
	}
}

func (h *HealthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/health/live", h.Liveness).Methods("GET")
	r.HandleFunc("/health/ready", h.Readiness).Methods("GET")
}

func (h *HealthHandler) mqttState() string {
	switch {
	case h.broker == nil:
		return "disabled"
	case h.broker.IsConnected():
		return "connected"
	default:
		return "disconnected"
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	dbErr := h.db.Health(ctx)
	response.Services.Database = (dbErr == nil)
	response.Services.Ledger = (h.ledger.Ping(ctx) == nil)
	response.Services.MQTT = h.mqttState()

	if !response.Services.Database || !response.Services.Ledger || response.Services.MQTT == "disconnected" {
		response.Status = "degraded"
		h.log.Warn("Health check degraded - DB: %v, ledger: %v, MQTT: %s",
			response.Services.Database, response.Services.Ledger, response.Services.MQTT)
	}

	statusCode := http.StatusOK
	if response.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, statusCode, response)
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
	})
}

// Readiness ignores MQTT: the HTTP intake path works without the broker.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	dbErr := h.db.Health(ctx)
	ledgerErr := h.ledger.Ping(ctx)

	if dbErr != nil || ledgerErr != nil {
		h.log.Warn("Readiness check failed - DB error: %v, ledger error: %v", dbErr, ledgerErr)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
