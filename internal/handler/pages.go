package handler

import (
	"html/template"
	"net/http"

	"PoscoMonitorAPI/internal/logger"
)

const pageLayout = `{{define "layout"}}<!DOCTYPE html>
<html lang="ko">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: Arial, sans-serif; padding: 20px; max-width: 420px; margin: 0 auto; background: #f5f5f5; }
.container { background: #fff; padding: 24px; border-radius: 10px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); text-align: center; }
.info-row { display: flex; justify-content: space-between; padding: 8px 0; border-bottom: 1px solid #eee; }
.label { color: #666; }
.value { font-weight: bold; }
.severity-error { color: #dc2626; }
.severity-warning { color: #d97706; }
.severity-info { color: #2563eb; }
.btn { display: block; padding: 14px; margin: 10px 0; border-radius: 8px; color: #fff; text-decoration: none; font-size: 16px; }
.btn-interlock { background: #ef4444; }
.btn-bypass { background: #10b981; }
.emoji { font-size: 56px; margin-bottom: 12px; }
.muted { color: #666; }
</style>
</head>
<body><div class="container">{{template "body" .}}</div></body>
</html>{{end}}`

const messageBody = `{{define "body"}}
<div class="emoji">{{.Emoji}}</div>
<h2>{{.Heading}}</h2>
<p class="muted">{{.Text}}</p>
{{end}}`

const chooserBody = `{{define "body"}}
<h2>🚨 설비 알림 처리</h2>
<div class="info-row"><span class="label">설비:</span><span class="value">{{.Alert.Equipment}}</span></div>
<div class="info-row"><span class="label">센서:</span><span class="value">{{.Sensor}}</span></div>
<div class="info-row"><span class="label">측정값:</span><span class="value">{{printf "%.1f" .Alert.Value}}</span></div>
<div class="info-row"><span class="label">임계값:</span><span class="value">{{printf "%.1f" .Alert.Threshold}}</span></div>
<div class="info-row"><span class="label">심각도:</span><span class="value severity-{{.Alert.Severity}}">{{.SeverityLabel}}</span></div>
<div class="info-row"><span class="label">발생 시각:</span><span class="value">{{.Alert.Timestamp}}</span></div>
<h3>처리 방법을 선택하세요:</h3>
<a class="btn btn-interlock" href="{{.InterlockURL}}">1. 인터락 (설비 정지)</a>
<a class="btn btn-bypass" href="{{.BypassURL}}">2. 바이패스 (계속 운전)</a>
{{end}}`

var (
	messagePage = template.Must(template.Must(template.New("message").Parse(pageLayout)).Parse(messageBody))
	chooserPage = template.Must(template.Must(template.New("chooser").Parse(pageLayout)).Parse(chooserBody))
)

type messageView struct {
	Title   string
	Emoji   string
	Heading string
	Text    string
}

var (
	pageNotFound = messageView{
		Title: "처리 오류", Emoji: "❌",
		Heading: "유효하지 않은 링크입니다",
		Text:    "링크가 만료되었거나 잘못된 접근입니다.",
	}
	pageExpired = messageView{
		Title: "링크 만료", Emoji: "⏰",
		Heading: "링크가 만료되었습니다",
		Text:    "처리 가능 시간(24시간)이 지났습니다.",
	}
	pageProcessed = messageView{
		Title: "처리 완료됨", Emoji: "✅",
		Heading: "이미 처리된 알림입니다",
		Text:    "다른 담당자가 이미 조치를 완료했습니다.",
	}
	pageRejected = messageView{
		Title: "처리 오류", Emoji: "❌",
		Heading: "처리할 수 없습니다",
		Text:    "유효하지 않거나 이미 처리된 요청입니다.",
	}
)

func renderPage(w http.ResponseWriter, log *logger.Logger, status int, tmpl *template.Template, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		log.Error("Failed to render %s page: %v", tmpl.Name(), err)
	}
}
