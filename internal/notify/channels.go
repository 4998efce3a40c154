package notify

import (
	"context"
	"errors"
	"fmt"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/telegram"
	"PoscoMonitorAPI/internal/websocket"
)

// MessageSender is the slice of the Telegram client the push channel needs.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
}

// TelegramChannel pushes alerts to fixed operator chats with a link button.
type TelegramChannel struct {
	client  MessageSender
	chatIDs []int64
	log     *logger.Logger
}

func NewTelegramChannel(client MessageSender, chatIDs []int64, log *logger.Logger) *TelegramChannel {
	return &TelegramChannel{client: client, chatIDs: chatIDs, log: log.Named("telegram")}
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Accepts(n Notification) bool {
	return len(c.chatIDs) > 0
}

func (c *TelegramChannel) Send(ctx context.Context, n Notification) error {
	text := telegram.AlertText(n.Alert, 0)
	var markup *telegram.InlineKeyboardMarkup
	if n.Link != "" {
		markup = telegram.LinkKeyboard(n.Link)
	}

	var errs []error
	for _, chatID := range c.chatIDs {
		if _, err := c.client.SendMessage(ctx, chatID, text, markup); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	if len(errs) == len(c.chatIDs) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		c.log.Warn("Partial telegram failure: %v", err)
	}
	return nil
}

// Broadcaster publishes a frame to connected dashboards.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

// WebLinkPayload is what dashboards receive for a new alert.
type WebLinkPayload struct {
	AlertID    string  `json:"alert_id"`
	RowID      int64   `json:"id,omitempty"`
	Equipment  string  `json:"equipment"`
	SensorType string  `json:"sensor_type"`
	Value      float64 `json:"value"`
	Threshold  float64 `json:"threshold"`
	Severity   string  `json:"severity"`
	Timestamp  string  `json:"timestamp"`
	Message    string  `json:"message,omitempty"`
	ActionLink string  `json:"action_link"`
}

// WebLinkChannel puts the action link in front of every open dashboard.
type WebLinkChannel struct {
	hub Broadcaster
}

func NewWebLinkChannel(hub Broadcaster) *WebLinkChannel {
	return &WebLinkChannel{hub: hub}
}

func (c *WebLinkChannel) Name() string { return "web_link" }

func (c *WebLinkChannel) Accepts(n Notification) bool { return c.hub != nil }

func (c *WebLinkChannel) Send(_ context.Context, n Notification) error {
	c.hub.Broadcast(websocket.EventAlert, WebLinkPayload{
		AlertID:    n.AlertID,
		RowID:      n.RowID,
		Equipment:  n.Alert.Equipment,
		SensorType: n.Alert.SensorType,
		Value:      n.Alert.Value,
		Threshold:  n.Alert.Threshold,
		Severity:   string(n.Alert.Severity),
		Timestamp:  n.Alert.Timestamp,
		Message:    n.Alert.Message,
		ActionLink: n.Link,
	})
	return nil
}
