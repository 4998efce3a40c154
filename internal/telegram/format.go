package telegram

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"PoscoMonitorAPI/internal/models"
)

func SeverityEmoji(s models.Severity) string {
	switch s {
	case models.SeverityError:
		return "🔴"
	case models.SeverityWarning:
		return "🟠"
	case models.SeverityInfo:
		return "🔵"
	}
	return "⚪"
}

func StatusEmoji(s models.AlertStatus) string {
	switch s {
	case models.StatusUnprocessed:
		return "❌"
	case models.StatusInProgress:
		return "⏳"
	case models.StatusInterlock:
		return "🔴"
	case models.StatusBypass:
		return "🟡"
	case models.StatusCompleted:
		return "✅"
	}
	return "❓"
}

// Value prints a reading without trailing zeros.
func Value(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Escape makes free text safe for HTML parse mode.
func Escape(s string) string {
	return html.EscapeString(s)
}

// AlertText renders the push notification body for an accepted alert.
// occurrences above 1 add a recurrence line.
func AlertText(ev models.AlertEvent, occurrences int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>설비 알림 발생</b>\n\n", SeverityEmoji(ev.Severity))
	fmt.Fprintf(&b, "🏭 <b>설비</b>: %s\n", Escape(ev.Equipment))
	fmt.Fprintf(&b, "📊 <b>센서</b>: %s\n", Escape(models.SensorLabel(ev.SensorType)))
	fmt.Fprintf(&b, "📈 <b>측정값</b>: %s\n", Value(ev.Value))
	fmt.Fprintf(&b, "⚠️ <b>임계값</b>: %s\n", Value(ev.Threshold))
	fmt.Fprintf(&b, "⏰ <b>시간</b>: %s", models.ClockTime(ev.Timestamp))
	if occurrences > 1 {
		fmt.Fprintf(&b, "\n🔄 <b>재발생</b>: %d회째 발생", occurrences)
	}
	if ev.Message != "" {
		fmt.Fprintf(&b, "\n\n📝 <b>메시지</b>: %s", Escape(ev.Message))
	}
	return b.String()
}

// ActionKeyboard offers interlock and bypass for error and warning alerts
// and a detail button for all of them.
func ActionKeyboard(id string, sev models.Severity) *InlineKeyboardMarkup {
	detail := []InlineKeyboardButton{{Text: "📊 상세정보", CallbackData: "status_" + id}}
	if sev != models.SeverityError && sev != models.SeverityWarning {
		return Keyboard(detail)
	}
	return Keyboard(
		[]InlineKeyboardButton{
			{Text: "🚨 인터락 (즉시정지)", CallbackData: "interlock_" + id},
			{Text: "⏭️ 바이패스 (무시)", CallbackData: "bypass_" + id},
		},
		detail,
	)
}

// LinkKeyboard points at the web action page instead of bot callbacks.
func LinkKeyboard(link string) *InlineKeyboardMarkup {
	return Keyboard([]InlineKeyboardButton{{Text: "🔧 조치하기", URL: link}})
}
