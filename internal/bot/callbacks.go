package bot

import (
	"context"
	"fmt"
	"strings"

	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/telegram"
)

const notFoundText = "❌ 알림을 찾을 수 없습니다."

// handleCallback serves the inline buttons. Data is "{action}_{alert id}".
func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	if err := b.tg.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
		b.log.Warn("answerCallbackQuery failed: %v", err)
	}
	if q.Message == nil {
		return
	}

	chatID, messageID := q.Message.Chat.ID, q.Message.MessageID
	action, id, ok := strings.Cut(q.Data, "_")
	if !ok {
		b.log.Warn("Malformed callback data %q", q.Data)
		return
	}

	switch action {
	case "interlock":
		b.interlock(ctx, chatID, messageID, id)
	case "bypass":
		b.bypass(ctx, chatID, messageID, id)
	case "status":
		b.showDetail(ctx, chatID, messageID, id)
	default:
		b.log.Warn("Unknown callback action %q", action)
	}
}

func operator(chatID int64) string {
	return fmt.Sprintf("chat_%d", chatID)
}

func (b *Bot) interlock(ctx context.Context, chatID, messageID int64, id string) {
	a, ok := b.mirror.Get(id)
	if !ok {
		b.edit(ctx, chatID, messageID, notFoundText)
		return
	}

	who := operator(chatID)
	b.mirror.SetStatus(id, models.StatusInProgress, who)

	// The server stops the equipment as part of the interlock action.
	if err := b.api.UpdateAlertStatus(ctx, a.Event.Key(), models.StatusInterlock, who, models.ActionInterlock); err != nil {
		b.log.Error("Interlock of %s failed: %v", a.Event.Equipment, err)
		b.edit(ctx, chatID, messageID, "❌ 인터락 처리 중 오류 발생: "+telegram.Escape(err.Error()))
		return
	}

	b.mirror.SetStatus(id, models.StatusInterlock, who)
	b.log.Info("Interlock sent for %s by %s", a.Event.Equipment, who)

	var sb strings.Builder
	sb.WriteString("🔴 <b>인터락 실행 완료</b>\n\n")
	fmt.Fprintf(&sb, "⚠️ <b>%s</b> 설비가 즉시 정지되었습니다.\n\n", telegram.Escape(a.Event.Equipment))
	writeAlertInfo(&sb, a)
	sb.WriteString("\n✅ <b>처리 상태</b>: 인터락 적용됨\n")
	fmt.Fprintf(&sb, "👤 <b>담당자</b>: %s\n\n", who)
	sb.WriteString("⚠️ <b>다음 단계:</b>\n1. 현장으로 이동하여 안전 확인\n2. 원인 파악 및 조치\n3. 정상 확인 후 설비 재가동")
	b.edit(ctx, chatID, messageID, sb.String())

	notice := fmt.Sprintf("🚨 <b>인터락 실행 알림</b>\n\n⚠️ %s 설비가 안전을 위해 정지되었습니다.\n👤 조치자: 운영진 (%s)\n⏰ 시간: %s",
		telegram.Escape(a.Event.Equipment), who, b.now().Format("15:04"))
	for _, sub := range b.subs.List() {
		if sub == chatID {
			continue
		}
		if _, err := b.tg.SendMessage(ctx, sub, notice, nil); err != nil {
			b.log.Error("Interlock notice to %d failed: %v", sub, err)
		}
	}
}

// bypass records the decision even when the API is unreachable; the
// operator has already chosen to keep the line running.
func (b *Bot) bypass(ctx context.Context, chatID, messageID int64, id string) {
	a, ok := b.mirror.Get(id)
	if !ok {
		b.edit(ctx, chatID, messageID, notFoundText)
		return
	}

	who := operator(chatID)
	b.mirror.SetStatus(id, models.StatusBypass, who)

	if err := b.api.UpdateAlertStatus(ctx, a.Event.Key(), models.StatusBypass, who, models.ActionBypass); err != nil {
		b.log.Error("Bypass report for %s failed: %v", a.Event.Equipment, err)
	}

	var sb strings.Builder
	sb.WriteString("🟡 <b>바이패스 적용 완료</b>\n\n")
	fmt.Fprintf(&sb, "⚠️ <b>%s</b> 알림이 일시적으로 무시됩니다.\n\n", telegram.Escape(a.Event.Equipment))
	writeAlertInfo(&sb, a)
	sb.WriteString("\n✅ <b>처리 상태</b>: 바이패스 적용됨\n")
	fmt.Fprintf(&sb, "👤 <b>담당자</b>: %s\n\n", who)
	sb.WriteString("⚠️ <b>주의사항:</b>\n• 지속적인 모니터링이 필요합니다\n• 상황이 악화되면 즉시 인터락하세요")
	b.edit(ctx, chatID, messageID, sb.String())
}

func writeAlertInfo(sb *strings.Builder, a MirroredAlert) {
	sb.WriteString("📊 <b>알림 정보:</b>\n")
	fmt.Fprintf(sb, "• 센서: %s\n", telegram.Escape(a.Event.SensorType))
	fmt.Fprintf(sb, "• 측정값: %s (임계값: %s)\n", telegram.Value(a.Event.Value), telegram.Value(a.Event.Threshold))
	fmt.Fprintf(sb, "• 시간: %s\n", models.ClockTime(a.Event.Timestamp))
}

func (b *Bot) showDetail(ctx context.Context, chatID, messageID int64, id string) {
	a, ok := b.mirror.Get(id)
	if !ok {
		b.edit(ctx, chatID, messageID, notFoundText)
		return
	}

	assigned := a.AssignedTo
	if assigned == "" {
		assigned = "미지정"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>알림 상세 정보</b>\n\n", telegram.SeverityEmoji(a.Event.Severity))
	fmt.Fprintf(&sb, "🏭 <b>설비</b>: %s\n", telegram.Escape(a.Event.Equipment))
	fmt.Fprintf(&sb, "📊 <b>센서</b>: %s\n", telegram.Escape(a.Event.SensorType))
	fmt.Fprintf(&sb, "📈 <b>측정값</b>: %s\n", telegram.Value(a.Event.Value))
	fmt.Fprintf(&sb, "⚠️ <b>임계값</b>: %s\n", telegram.Value(a.Event.Threshold))
	if a.Event.Message != "" {
		fmt.Fprintf(&sb, "📝 <b>메시지</b>: %s\n", telegram.Escape(a.Event.Message))
	}
	fmt.Fprintf(&sb, "⏰ <b>발생시간</b>: %s\n", a.Event.Timestamp)
	fmt.Fprintf(&sb, "📋 <b>상태</b>: %s\n", a.Status)
	fmt.Fprintf(&sb, "👤 <b>담당자</b>: %s\n", assigned)

	if h, ok := b.engine.History(a.Signature); ok {
		sb.WriteString("\n📈 <b>알림 이력:</b>\n")
		fmt.Fprintf(&sb, "• 최초 발생: %s\n", h.FirstOccurrence.Format("2006-01-02 15:04"))
		fmt.Fprintf(&sb, "• 마지막 발생: %s\n", h.LastOccurrence.Format("2006-01-02 15:04"))
		fmt.Fprintf(&sb, "• 총 발생 횟수: %d회\n", h.OccurrenceCount)
		if len(h.Values) > 1 {
			values := h.Values
			if len(values) > 5 {
				values = values[len(values)-5:]
			}
			trend := make([]string, len(values))
			for i, v := range values {
				trend[i] = fmt.Sprintf("%.1f", v)
			}
			fmt.Fprintf(&sb, "• 최근 값 추이: %s\n", strings.Join(trend, " → "))
		}
	}

	b.edit(ctx, chatID, messageID, sb.String())
}
