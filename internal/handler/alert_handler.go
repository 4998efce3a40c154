package handler

import (
	"net/http"

	"PoscoMonitorAPI/internal/alerting"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

type AlertHandler struct {
	alertService *service.AlertService
	log          *logger.Logger
}

func NewAlertHandler(alertService *service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		log:          log,
	}
}

func (h *AlertHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/alerts", h.Submit).Methods("POST")
	r.HandleFunc("/alerts", h.List).Methods("GET")
	r.HandleFunc("/alerts/status", h.UpdateStatusByKey).Methods("PUT")
	r.HandleFunc("/alerts/{alert_id}", h.Get).Methods("GET")
	r.HandleFunc("/alerts/{alert_id}/status", h.UpdateStatus).Methods("PUT")
	r.HandleFunc("/status_machine", h.StatusMachine).Methods("GET")
}

func (h *AlertHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var ev models.AlertEvent
	if err := decodeJSON(r, &ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid alert body: "+err.Error())
		return
	}

	res, err := h.alertService.Submit(r.Context(), ev)
	if err != nil {
		respondServiceError(w, h.log, "submit alert", err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	alerts, err := h.alertService.List(r.Context(), models.AlertFilter{
		Equipment: query.Get("equipment"),
		Severity:  query.Get("severity"),
		Status:    query.Get("status"),
		Limit:     queryInt(r, "limit", 0),
	})
	if err != nil {
		respondServiceError(w, h.log, "list alerts", err)
		return
	}

	respondJSON(w, http.StatusOK, alerts)
}

func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref, err := alerting.ParseAlertID(mux.Vars(r)["alert_id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.alertService.Get(r.Context(), ref)
	if err != nil {
		respondServiceError(w, h.log, "get alert", err)
		return
	}

	respondJSON(w, http.StatusOK, alert)
}

// UpdateStatus accepts the path-embedded id form used by dashboards and
// the bot.
func (h *AlertHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ref, err := alerting.ParseAlertID(mux.Vars(r)["alert_id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	h.updateStatus(w, r, service.StatusUpdate{
		Ref:        ref,
		Status:     query.Get("status"),
		AssignedTo: query.Get("assigned_to"),
		ActionType: query.Get("action_type"),
	})
}

type statusUpdateRequest struct {
	Equipment  string `json:"equipment"`
	SensorType string `json:"sensor_type"`
	Timestamp  string `json:"timestamp"`
	Status     string `json:"status"`
	AssignedTo string `json:"assigned_to"`
	ActionType string `json:"action_type"`
}

// UpdateStatusByKey takes the key parts explicitly, so equipment and sensor
// names may contain underscores.
func (h *AlertHandler) UpdateStatusByKey(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	key, err := models.AlertKey{
		Equipment:  req.Equipment,
		SensorType: req.SensorType,
		Timestamp:  req.Timestamp,
	}.Validate()
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.updateStatus(w, r, service.StatusUpdate{
		Ref:        alerting.AlertRef{Key: key},
		Status:     req.Status,
		AssignedTo: req.AssignedTo,
		ActionType: req.ActionType,
	})
}

func (h *AlertHandler) updateStatus(w http.ResponseWriter, r *http.Request, u service.StatusUpdate) {
	res, err := h.alertService.UpdateStatus(r.Context(), u)
	if err != nil {
		respondServiceError(w, h.log, "update alert status", err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

type statusMachineResponse struct {
	Initial     models.AlertStatus                          `json:"initial"`
	Transitions map[models.AlertStatus][]models.AlertStatus `json:"transitions"`
	Enforced    bool                                        `json:"enforced"`
}

func (h *AlertHandler) StatusMachine(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statusMachineResponse{
		Initial:     models.StatusUnprocessed,
		Transitions: alerting.StatusTransitions,
		Enforced:    false,
	})
}
