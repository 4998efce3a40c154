package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/telegram"
)

const (
	activeListLimit    = 10
	equipmentListLimit = 8
	statsEquipmentTop  = 5
)

const helpText = `🤖 <b>POSCO MOBILITY IoT 알림 봇 도움말</b>

📋 <b>명령어:</b>
• /start - 봇 시작 및 환영 메시지
• /subscribe - 실시간 알림 구독
• /unsubscribe - 알림 구독 취소
• /alerts - 현재 활성 알림 조회
• /status - 전체 설비 상태 확인
• /stats - 알림 통계 보기
• /help - 이 도움말 보기

🚨 <b>알림 기능:</b>
• <b>인터락</b>: 설비 즉시 정지 (안전 우선)
• <b>바이패스</b>: 일시적 무시 (주의해서 사용)

📞 <b>긴급 상황 시</b>: 안전을 위해 먼저 <b>인터락</b> 버튼으로 설비를 정지한 후 현장 확인하세요.`

func (b *Bot) handleCommand(ctx context.Context, msg *telegram.Message) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	chatID := msg.Chat.ID

	switch cmd {
	case "/start":
		b.reply(ctx, chatID, "🏭 <b>POSCO MOBILITY IoT 알림 봇</b>\n\n"+
			"설비 이상 알림을 실시간으로 받아보세요.\n"+
			"시작하려면 /subscribe 명령어를 입력하세요!")
	case "/subscribe":
		b.subscribe(ctx, chatID)
	case "/unsubscribe":
		b.unsubscribe(ctx, chatID)
	case "/alerts":
		b.reply(ctx, chatID, b.activeAlertsText())
	case "/status":
		b.reply(ctx, chatID, b.equipmentText(ctx))
	case "/stats":
		b.reply(ctx, chatID, b.statsText())
	case "/help":
		b.reply(ctx, chatID, helpText)
	default:
		b.log.Debug("Ignoring unknown command %q from %d", cmd, chatID)
	}
}

func (b *Bot) subscribe(ctx context.Context, chatID int64) {
	added, err := b.subs.Add(chatID)
	if err != nil {
		b.log.Error("Failed to persist subscriber %d: %v", chatID, err)
	}
	if added {
		b.log.Info("New subscriber %d", chatID)
	}

	b.reply(ctx, chatID, fmt.Sprintf("✅ <b>알림 구독이 완료되었습니다!</b>\n\n"+
		"이제 설비 이상 발생 시 실시간으로 알림을 받으실 수 있습니다.\n\n"+
		"⚙️ <b>중복 알림 방지:</b>\n"+
		"• 동일 알림은 심각도에 따라 %s~%s 간격으로 전송\n"+
		"• 값 변화가 %.0f%% 이상일 때만 새 알림 전송",
		koreanDuration(b.engine.Cooldown(models.SeverityError)), koreanDuration(b.engine.Cooldown(models.SeverityInfo)),
		b.cfg.Alerting.ValueChangeThreshold*100))
}

func koreanDuration(d time.Duration) string {
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d분", int(d.Minutes()))
	}
	return fmt.Sprintf("%d초", int(d.Seconds()))
}

func (b *Bot) unsubscribe(ctx context.Context, chatID int64) {
	removed, err := b.subs.Remove(chatID)
	if err != nil {
		b.log.Error("Failed to persist subscriber removal %d: %v", chatID, err)
	}
	if removed {
		b.log.Info("Removed subscriber %d", chatID)
	}

	b.reply(ctx, chatID, "❌ <b>알림 구독이 취소되었습니다.</b>\n\n"+
		"다시 구독하려면 /subscribe 명령어를 사용하세요.")
}

func (b *Bot) activeAlertsText() string {
	active := b.mirror.Active(activeListLimit)
	if len(active) == 0 {
		return "✅ <b>현재 활성 알림이 없습니다.</b>\n\n모든 설비가 정상 작동 중입니다! 👍"
	}

	var sb strings.Builder
	sb.WriteString("🚨 <b>현재 활성 알림 목록:</b>\n\n")
	for _, a := range active {
		occurrence := ""
		if h, ok := b.engine.History(a.Signature); ok {
			occurrence = fmt.Sprintf(" (발생 %d회)", h.OccurrenceCount)
		}
		fmt.Fprintf(&sb, "%s <b>%s</b>%s\n", telegram.SeverityEmoji(a.Event.Severity), telegram.Escape(a.Event.Equipment), occurrence)
		fmt.Fprintf(&sb, "   📊 %s: %s (임계값: %s)\n", telegram.Escape(a.Event.SensorType),
			telegram.Value(a.Event.Value), telegram.Value(a.Event.Threshold))
		fmt.Fprintf(&sb, "   ⏰ %s | %s %s\n\n", models.ClockTime(a.Event.Timestamp), telegram.StatusEmoji(a.Status), a.Status)
	}
	return sb.String()
}

func equipmentEmoji(status string) string {
	switch status {
	case models.EquipmentNormal:
		return "🟢"
	case models.EquipmentStopped:
		return "🔴"
	case "주의":
		return "🟠"
	}
	return "⚪"
}

func efficiencyLabel(eff float64) string {
	switch {
	case eff >= 90:
		return "높음"
	case eff >= 70:
		return "보통"
	}
	return "낮음"
}

func (b *Bot) equipmentText(ctx context.Context) string {
	items, err := b.api.Equipment(ctx)
	if err != nil {
		b.log.Error("Equipment lookup failed: %v", err)
		return "❌ 설비 상태 조회 중 오류가 발생했습니다."
	}

	if len(items) > equipmentListLimit {
		items = items[:equipmentListLimit]
	}

	var sb strings.Builder
	sb.WriteString("🏭 <b>설비 현황:</b>\n\n")
	for _, eq := range items {
		fmt.Fprintf(&sb, "%s <b>%s</b>\n", equipmentEmoji(eq.Status), telegram.Escape(eq.Name))
		fmt.Fprintf(&sb, "   📈 가동률: %s%% (%s)\n", telegram.Value(eq.Efficiency), efficiencyLabel(eq.Efficiency))
		fmt.Fprintf(&sb, "   🔧 정비: %s\n\n", telegram.Escape(eq.LastMaintenance))
	}
	return sb.String()
}

type equipmentTally struct {
	total   int
	active  int
	sensors []string
}

func (b *Bot) statsText() string {
	histories := b.engine.Histories()

	active := 0
	bySeverity := map[models.Severity]int{}
	byEquipment := map[string]*equipmentTally{}
	for _, h := range histories {
		if h.IsActive {
			active++
		}
		bySeverity[h.Severity] += h.OccurrenceCount

		t, ok := byEquipment[h.Equipment]
		if !ok {
			t = &equipmentTally{}
			byEquipment[h.Equipment] = t
		}
		t.total += h.OccurrenceCount
		if h.IsActive {
			t.active++
		}
		t.sensors = appendUnique(t.sensors, h.SensorType)
	}

	var sb strings.Builder
	sb.WriteString("📊 <b>알림 통계</b>\n\n")
	sb.WriteString("📈 <b>전체 현황:</b>\n")
	fmt.Fprintf(&sb, "• 총 알림 수: %d건\n", b.mirror.Len())
	fmt.Fprintf(&sb, "• 활성 알림: %d건\n", active)
	fmt.Fprintf(&sb, "• 고유 알림 타입: %d개\n\n", len(histories))

	sb.WriteString("🚨 <b>심각도별 통계:</b>\n")
	fmt.Fprintf(&sb, "• 🔴 Error: %d건\n", bySeverity[models.SeverityError])
	fmt.Fprintf(&sb, "• 🟠 Warning: %d건\n", bySeverity[models.SeverityWarning])
	fmt.Fprintf(&sb, "• 🔵 Info: %d건\n", bySeverity[models.SeverityInfo])

	if len(byEquipment) == 0 {
		return sb.String()
	}

	names := make([]string, 0, len(byEquipment))
	for name := range byEquipment {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ti, tj := byEquipment[names[i]].total, byEquipment[names[j]].total
		if ti != tj {
			return ti > tj
		}
		return names[i] < names[j]
	})
	if len(names) > statsEquipmentTop {
		names = names[:statsEquipmentTop]
	}

	sb.WriteString("\n🏭 <b>설비별 통계:</b>\n")
	for _, name := range names {
		t := byEquipment[name]
		fmt.Fprintf(&sb, "• <b>%s</b>: %d건", telegram.Escape(name), t.total)
		if t.active > 0 {
			fmt.Fprintf(&sb, " (활성: %d)", t.active)
		}
		sensors := t.sensors
		if len(sensors) > 3 {
			sensors = sensors[:3]
		}
		fmt.Fprintf(&sb, "\n  센서: %s\n", telegram.Escape(strings.Join(sensors, ", ")))
	}
	return sb.String()
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
