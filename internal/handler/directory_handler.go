package handler

import (
	"net/http"
	"strconv"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

// DirectoryHandler serves sensor readings, operators and the SMS log.
type DirectoryHandler struct {
	directory *service.DirectoryService
	log       *logger.Logger
}

func NewDirectoryHandler(directory *service.DirectoryService, log *logger.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		directory: directory,
		log:       log,
	}
}

func (h *DirectoryHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sensors", h.ListSensors).Methods("GET")
	r.HandleFunc("/sensors", h.RecordSensor).Methods("POST")
	r.HandleFunc("/users", h.ListUsers).Methods("GET")
	r.HandleFunc("/users", h.CreateUser).Methods("POST")
	r.HandleFunc("/users/{id}", h.UpdateUser).Methods("PUT")
	r.HandleFunc("/users/{id}", h.DeactivateUser).Methods("DELETE")
	r.HandleFunc("/users/{id}/equipment", h.UserEquipment).Methods("GET")
	r.HandleFunc("/users/{id}/subscriptions", h.ListSubscriptions).Methods("GET")
	r.HandleFunc("/users/{id}/subscriptions", h.Subscribe).Methods("POST")
	r.HandleFunc("/subscriptions/{id}", h.Unsubscribe).Methods("DELETE")
	r.HandleFunc("/sms_history", h.SMSHistory).Methods("GET")
	r.HandleFunc("/sms/history", h.SMSHistory).Methods("GET")
}

func (h *DirectoryHandler) ListSensors(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	data, err := h.directory.ListSensors(r.Context(), query.Get("equipment"), query.Get("sensor_type"), queryInt(r, "limit", 0))
	if err != nil {
		respondServiceError(w, h.log, "list sensor data", err)
		return
	}
	respondJSON(w, http.StatusOK, data)
}

func (h *DirectoryHandler) RecordSensor(w http.ResponseWriter, r *http.Request) {
	var d models.SensorData
	if err := decodeJSON(r, &d); err != nil {
		respondError(w, http.StatusBadRequest, "invalid sensor body: "+err.Error())
		return
	}

	if _, err := h.directory.RecordSensor(r.Context(), d); err != nil {
		respondServiceError(w, h.log, "record sensor data", err)
		return
	}
	respondOK(w, "센서 데이터가 저장되었습니다.")
}

func (h *DirectoryHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.ListUsers(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "list users", err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *DirectoryHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var u models.User
	if err := decodeJSON(r, &u); err != nil {
		respondError(w, http.StatusBadRequest, "invalid user body: "+err.Error())
		return
	}

	if err := h.directory.CreateUser(r.Context(), &u); err != nil {
		respondServiceError(w, h.log, "create user", err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

func pathID(r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[key], 10, 64)
	return id, err == nil && id > 0
}

func userID(r *http.Request) (int64, bool) {
	return pathID(r, "id")
}

func (h *DirectoryHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var upd models.UserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid user body: "+err.Error())
		return
	}

	if err := h.directory.UpdateUser(r.Context(), id, upd); err != nil {
		respondServiceError(w, h.log, "update user", err)
		return
	}
	respondOK(w, "사용자 정보가 수정되었습니다.")
}

func (h *DirectoryHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.directory.DeactivateUser(r.Context(), id); err != nil {
		respondServiceError(w, h.log, "deactivate user", err)
		return
	}
	respondOK(w, "사용자가 비활성화되었습니다.")
}

func (h *DirectoryHandler) UserEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	list, err := h.directory.UserEquipment(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.log, "list user equipment", err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *DirectoryHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	subs, err := h.directory.ListSubscriptions(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.log, "list subscriptions", err)
		return
	}
	respondJSON(w, http.StatusOK, subs)
}

func (h *DirectoryHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var sub models.AlertSubscription
	if err := decodeJSON(r, &sub); err != nil {
		respondError(w, http.StatusBadRequest, "invalid subscription body: "+err.Error())
		return
	}
	sub.UserID = id

	if err := h.directory.Subscribe(r.Context(), &sub); err != nil {
		respondServiceError(w, h.log, "create subscription", err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

func (h *DirectoryHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	if err := h.directory.Unsubscribe(r.Context(), id); err != nil {
		respondServiceError(w, h.log, "delete subscription", err)
		return
	}
	respondOK(w, "알림 구독이 삭제되었습니다.")
}

func (h *DirectoryHandler) SMSHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.directory.SMSHistory(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		respondServiceError(w, h.log, "list sms history", err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}
