package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"PoscoMonitorAPI/internal/alerting"
	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/telegram"

	"github.com/patrickmn/go-cache"
)

const longPollSeconds = 30

// Messenger is the part of the Bot API the bot uses.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]telegram.Update, error)
}

// Bot polls the API for new alerts, pushes them to subscribed chats and
// turns button presses into status updates. It keeps its own dedup engine
// because it runs as a separate process.
type Bot struct {
	cfg       *config.BotConfig
	tg        Messenger
	api       *APIClient
	subs      *SubscriberStore
	engine    *alerting.Engine
	mirror    *Mirror
	processed *cache.Cache
	log       *logger.Logger

	now       alerting.Clock
	startedAt time.Time
	lastSweep time.Time
}

func New(cfg *config.BotConfig, tg Messenger, api *APIClient, subs *SubscriberStore, log *logger.Logger) *Bot {
	b := &Bot{
		cfg:       cfg,
		tg:        tg,
		api:       api,
		subs:      subs,
		mirror:    NewMirror(cfg.Alerting.MaxLedgerEntries),
		processed: cache.New(cfg.ProcessedTTL, cfg.ProcessedTTL),
		log:       log.Named("bot"),
		now:       time.Now,
	}
	b.engine = alerting.NewEngine(cfg.Alerting, log, func() time.Time { return b.now() })
	b.startedAt = b.now().Truncate(time.Second)
	b.lastSweep = b.startedAt
	return b
}

// Run blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	b.log.Info("Monitoring %s since %s, %d subscribers",
		b.cfg.APIBaseURL, b.startedAt.Format(models.TimestampLayout), b.subs.Len())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		b.pollLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		b.updateLoop(ctx)
	}()
	wg.Wait()

	b.log.Info("Bot stopped")
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (b *Bot) pollLoop(ctx context.Context) {
	for {
		wait := b.cfg.PollInterval
		if err := b.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.Error("Alert poll failed: %v", err)
			wait = b.cfg.ErrorBackoff
		}

		if now := b.now(); now.Sub(b.lastSweep) >= b.cfg.Alerting.CleanupInterval {
			removed, trimmed := b.engine.Sweep(now)
			b.lastSweep = now
			b.log.Debug("Sweep removed %d histories, trimmed %d raw entries", removed, trimmed)
		}

		if !sleep(ctx, wait) {
			return
		}
	}
}

func (b *Bot) updateLoop(ctx context.Context) {
	var offset int64
	for {
		updates, err := b.tg.GetUpdates(ctx, offset, longPollSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.log.Error("getUpdates failed: %v", err)
			if !sleep(ctx, b.cfg.ErrorBackoff) {
				return
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			b.HandleUpdate(ctx, u)
		}
	}
}

// Poll fetches recent alerts once and pushes the ones that pass dedup.
func (b *Bot) Poll(ctx context.Context) error {
	alerts, err := b.api.RecentAlerts(ctx, b.cfg.FetchLimit)
	if err != nil {
		return err
	}

	// newest first from the API; push in arrival order
	for i := len(alerts) - 1; i >= 0; i-- {
		b.consider(ctx, alerts[i])
	}
	return nil
}

func (b *Bot) consider(ctx context.Context, stored models.StoredAlert) {
	ev := models.AlertEvent{
		Equipment:  stored.Equipment,
		SensorType: stored.SensorType,
		Value:      stored.Value,
		Threshold:  stored.Threshold,
		Severity:   stored.Severity,
		Timestamp:  models.NormalizeTimestamp(strings.TrimSpace(stored.Timestamp)),
		Message:    stored.Message,
	}
	key := ev.Key()

	if at, err := key.Time(); err != nil {
		b.log.Warn("Unparsable alert timestamp %q: %v", stored.Timestamp, err)
	} else if at.Before(b.startedAt) {
		return
	}

	if err := b.processed.Add(key.String(), struct{}{}, cache.DefaultExpiration); err != nil {
		return
	}

	d := b.engine.Evaluate(ev)
	if !d.Accepted {
		b.log.Debug("Suppressed %s: %s", key, d.Reason)
		return
	}

	a := b.mirror.Add(ev, d.Signature, b.now())
	b.pushAlert(ctx, a)
}

func (b *Bot) pushAlert(ctx context.Context, a MirroredAlert) {
	subs := b.subs.List()
	if len(subs) == 0 {
		b.log.Info("No subscribers, %s not pushed", a.ID)
		return
	}

	occurrences := 1
	if h, ok := b.engine.History(a.Signature); ok {
		occurrences = h.OccurrenceCount
	}
	text := telegram.AlertText(a.Event, occurrences)
	keyboard := telegram.ActionKeyboard(a.ID, a.Event.Severity)

	for _, chatID := range subs {
		if _, err := b.tg.SendMessage(ctx, chatID, text, keyboard); err != nil {
			b.log.Error("Push of %s to %d failed: %v", a.ID, chatID, err)
			continue
		}
		b.log.Info("Pushed %s to %d", a.ID, chatID)
	}
}

// HandleUpdate routes one Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && strings.HasPrefix(u.Message.Text, "/"):
		b.handleCommand(ctx, u.Message)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.tg.SendMessage(ctx, chatID, text, nil); err != nil {
		b.log.Error("Reply to %d failed: %v", chatID, err)
	}
}

func (b *Bot) edit(ctx context.Context, chatID, messageID int64, text string) {
	if err := b.tg.EditMessageText(ctx, chatID, messageID, text, nil); err != nil {
		b.log.Error("Edit of message %d in %d failed: %v", messageID, chatID, err)
	}
}
