package handler

import (
	"net/http"

	"PoscoMonitorAPI/internal/alerting"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

type MaintenanceHandler struct {
	maintenanceService *service.MaintenanceService
	log                *logger.Logger
}

func NewMaintenanceHandler(maintenanceService *service.MaintenanceService, log *logger.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		maintenanceService: maintenanceService,
		log:                log,
	}
}

func (h *MaintenanceHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/memory_status", h.MemoryStatus).Methods("GET")
	r.HandleFunc("/cleanup_memory", h.Cleanup).Methods("POST")
	r.HandleFunc("/clear_data", h.ClearData).Methods("POST")
	r.HandleFunc("/clear_sensor_data", h.ClearSensorData).Methods("POST")
}

func (h *MaintenanceHandler) MemoryStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.maintenanceService.MemoryStatus(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "read memory status", err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

type cleanupResponse struct {
	Status  string               `json:"status"`
	Message string               `json:"message"`
	Result  alerting.SweepResult `json:"result"`
}

func (h *MaintenanceHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	res, err := h.maintenanceService.Cleanup(r.Context())
	if err != nil {
		respondServiceError(w, h.log, "clean up memory", err)
		return
	}
	respondJSON(w, http.StatusOK, cleanupResponse{
		Status:  "ok",
		Message: "메모리 정리가 완료되었습니다.",
		Result:  res,
	})
}

func (h *MaintenanceHandler) ClearData(w http.ResponseWriter, r *http.Request) {
	if err := h.maintenanceService.ClearData(r.Context()); err != nil {
		h.log.Error("Failed to clear data: %v", err)
		respondError(w, http.StatusInternalServerError, "데이터베이스 초기화 실패: "+err.Error())
		return
	}
	respondOK(w, "데이터베이스가 초기화되었습니다.")
}

func (h *MaintenanceHandler) ClearSensorData(w http.ResponseWriter, r *http.Request) {
	if err := h.maintenanceService.ClearSensorData(r.Context()); err != nil {
		h.log.Error("Failed to clear sensor data: %v", err)
		respondError(w, http.StatusInternalServerError, "센서 데이터 초기화 실패: "+err.Error())
		return
	}
	respondOK(w, "센서 데이터가 초기화되었습니다. 사용자 데이터는 보존됩니다.")
}
