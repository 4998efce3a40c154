package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PoscoMonitorAPI/internal/alerting"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/report"
	"PoscoMonitorAPI/internal/service"

	"github.com/gorilla/mux"
)

const defaultHistoryLimit = 20

type ActionHandler struct {
	actionService *service.ActionService
	pdf           report.PDFOptions
	log           *logger.Logger
}

func NewActionHandler(actionService *service.ActionService, pdf report.PDFOptions, log *logger.Logger) *ActionHandler {
	return &ActionHandler{
		actionService: actionService,
		pdf:           pdf,
		log:           log,
	}
}

func (h *ActionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/action/{token}", h.ShowAction).Methods("GET")
	r.HandleFunc("/action/{token}/process", h.ProcessAction).Methods("GET", "POST")
	r.HandleFunc("/action_history", h.History).Methods("GET")
	r.HandleFunc("/action_history/report.pdf", h.ReportPDF).Methods("GET")
	r.HandleFunc("/action_history/report.xlsx", h.ReportXLSX).Methods("GET")
	r.HandleFunc("/action_stats", h.Stats).Methods("GET")
	r.HandleFunc("/link_stats", h.LinkStats).Methods("GET")
}

type chooserView struct {
	Title         string
	Alert         models.AlertEvent
	Sensor        string
	SeverityLabel string
	InterlockURL  string
	BypassURL     string
}

func processURL(token string, action models.ActionType) string {
	return "/action/" + url.PathEscape(token) + "/process?action=" + string(action)
}

// tokenPage picks the page and status for a token that cannot be acted on.
func tokenPage(res alerting.ResolveResult) (int, messageView) {
	switch res {
	case alerting.ResolveExpired:
		return http.StatusGone, pageExpired
	case alerting.ResolveAlreadyProcessed:
		return http.StatusConflict, pageProcessed
	default:
		return http.StatusNotFound, pageNotFound
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") || r.URL.Query().Get("format") == "json"
}

func (h *ActionHandler) ShowAction(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	t, res := h.actionService.Lookup(token)

	if wantsJSON(r) {
		status := http.StatusOK
		if res != alerting.ResolveOK {
			status, _ = tokenPage(res)
		}
		respondJSON(w, status, map[string]interface{}{"result": res, "token": t})
		return
	}

	if res != alerting.ResolveOK {
		status, page := tokenPage(res)
		renderPage(w, h.log, status, messagePage, page)
		return
	}

	renderPage(w, h.log, http.StatusOK, chooserPage, chooserView{
		Title:         "설비 알림 처리",
		Alert:         t.Alert,
		Sensor:        models.SensorLabel(t.Alert.SensorType),
		SeverityLabel: strings.ToUpper(string(t.Alert.Severity)),
		InterlockURL:  processURL(token, models.ActionInterlock),
		BypassURL:     processURL(token, models.ActionBypass),
	})
}

func (h *ActionHandler) ProcessAction(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	action, err := models.ParseActionType(r.URL.Query().Get("action"))
	if err != nil {
		if wantsJSON(r) {
			respondError(w, http.StatusBadRequest, "잘못된 액션입니다")
			return
		}
		renderPage(w, h.log, http.StatusBadRequest, messagePage, messageView{
			Title: "처리 오류", Emoji: "❌", Heading: "잘못된 액션입니다",
			Text: "인터락 또는 바이패스만 선택할 수 있습니다.",
		})
		return
	}

	res, err := h.actionService.Process(r.Context(), token, action)
	if err != nil {
		h.log.Error("Failed to process token %s: %v", token, err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if wantsJSON(r) {
		status := http.StatusOK
		if res.Result != alerting.ResolveOK {
			status, _ = tokenPage(res.Result)
		}
		respondJSON(w, status, res)
		return
	}

	if res.Result != alerting.ResolveOK {
		status, page := tokenPage(res.Result)
		if res.Result == alerting.ResolveNotFound {
			page = pageRejected
		}
		renderPage(w, h.log, status, messagePage, page)
		return
	}

	page := messageView{Title: "처리 완료", Heading: "처리 완료"}
	if action == models.ActionInterlock {
		page.Emoji = "🔴"
		page.Text = "설비가 정지되었습니다. 이 창은 닫으셔도 됩니다."
	} else {
		page.Emoji = "🟢"
		page.Text = "설비가 계속 운전됩니다. 이 창은 닫으셔도 됩니다."
	}
	renderPage(w, h.log, http.StatusOK, messagePage, page)
}

func (h *ActionHandler) History(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.actionService.History(queryInt(r, "limit", defaultHistoryLimit)))
}

func (h *ActionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.actionService.Stats())
}

func (h *ActionHandler) LinkStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.actionService.LinkStats())
}

func (h *ActionHandler) ReportPDF(w http.ResponseWriter, r *http.Request) {
	h.writeReport(w, r, "pdf", "application/pdf")
}

func (h *ActionHandler) ReportXLSX(w http.ResponseWriter, r *http.Request) {
	h.writeReport(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
}

// writeReport renders into a buffer first so a failure still yields a
// clean error response.
func (h *ActionHandler) writeReport(w http.ResponseWriter, r *http.Request, ext, contentType string) {
	records := h.actionService.History(queryInt(r, "limit", 0))
	now := time.Now()

	var buf bytes.Buffer
	var err error
	if ext == "pdf" {
		err = report.WritePDF(&buf, records, now, h.pdf)
	} else {
		err = report.WriteXLSX(&buf, records, now)
	}
	if err != nil {
		h.log.Error("Failed to build %s report: %v", ext, err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	filename := fmt.Sprintf("action_history_%s.%s", now.Format("20060102_150405"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
