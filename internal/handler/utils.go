package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"PoscoMonitorAPI/internal/alerting"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/repository"
	"PoscoMonitorAPI/internal/service"
)

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		return
	}
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Detail: message})
}

func respondOK(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, MessageResponse{Status: "ok", Message: message})
}

// respondServiceError maps service errors onto status codes. Only
// unexpected failures are logged.
func respondServiceError(w http.ResponseWriter, log *logger.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, alerting.ErrInvalidAlertID):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		log.Error("Failed to %s: %v", op, err)
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}
