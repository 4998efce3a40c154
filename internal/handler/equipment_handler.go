package handler

import (
	"net/http"
	"strconv"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

type EquipmentHandler struct {
	equipmentService *service.EquipmentService
	directory        *service.DirectoryService
	log              *logger.Logger
}

func NewEquipmentHandler(equipmentService *service.EquipmentService, directory *service.DirectoryService, log *logger.Logger) *EquipmentHandler {
	return &EquipmentHandler{
		equipmentService: equipmentService,
		directory:        directory,
		log:              log,
	}
}

func (h *EquipmentHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/equipment", h.List).Methods("GET")
	r.HandleFunc("/equipment/users/summary", h.AssignmentSummary).Methods("GET")
	r.HandleFunc("/equipment/{id}", h.Get).Methods("GET")
	r.HandleFunc("/equipment/{id}/status", h.UpdateStatus).Methods("PUT")
	r.HandleFunc("/equipment/{id}/users", h.ListUsers).Methods("GET")
	r.HandleFunc("/equipment/{id}/users", h.AssignUser).Methods("POST")
	r.HandleFunc("/equipment/{id}/users/{user_id}", h.UpdateUser).Methods("PUT")
	r.HandleFunc("/equipment/{id}/users/{user_id}", h.RemoveUser).Methods("DELETE")
}

func (h *EquipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.equipmentService.List(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "list equipment", err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *EquipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	eq, err := h.equipmentService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, "get equipment", err)
		return
	}
	respondJSON(w, http.StatusOK, eq)
}

func (h *EquipmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	query := r.URL.Query()

	efficiency, err := strconv.ParseFloat(query.Get("efficiency"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "efficiency must be a number")
		return
	}

	if err := h.equipmentService.UpdateStatus(r.Context(), id, query.Get("status"), efficiency); err != nil {
		respondServiceError(w, h.log, "update equipment status", err)
		return
	}
	respondOK(w, "설비 상태가 업데이트되었습니다.")
}

func (h *EquipmentHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.ListEquipmentUsers(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, "list equipment users", err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *EquipmentHandler) AssignUser(w http.ResponseWriter, r *http.Request) {
	var eu models.EquipmentUser
	if err := decodeJSON(r, &eu); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	eu.EquipmentID = mux.Vars(r)["id"]

	if err := h.directory.AssignEquipmentUser(r.Context(), eu); err != nil {
		respondServiceError(w, h.log, "assign equipment user", err)
		return
	}
	respondOK(w, "설비 담당자가 지정되었습니다.")
}

func (h *EquipmentHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(r, "user_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var upd models.EquipmentUserUpdate
	if err := decodeJSON(r, &upd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.directory.UpdateEquipmentUser(r.Context(), mux.Vars(r)["id"], uid, upd); err != nil {
		respondServiceError(w, h.log, "update equipment user", err)
		return
	}
	respondOK(w, "사용자 할당 정보가 수정되었습니다.")
}

func (h *EquipmentHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	uid, ok := pathID(r, "user_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.directory.RemoveEquipmentUser(r.Context(), mux.Vars(r)["id"], uid); err != nil {
		respondServiceError(w, h.log, "remove equipment user", err)
		return
	}
	respondOK(w, "사용자 할당이 해제되었습니다.")
}

func (h *EquipmentHandler) AssignmentSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.directory.AssignmentSummary(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "summarize equipment users", err)
		return
	}
	respondJSON(w, http.StatusOK, sum)
}
