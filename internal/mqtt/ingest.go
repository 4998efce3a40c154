package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"PoscoMonitorAPI/internal/models"
)

// SubmitFunc feeds one decoded alert into the pipeline.
type SubmitFunc func(ctx context.Context, ev models.AlertEvent) error

// AlertHandler decodes AlertEvent JSON payloads and submits them with a
// bounded deadline per message.
func AlertHandler(submit SubmitFunc, timeout time.Duration) MessageHandler {
	return func(topic string, payload []byte) error {
		var ev models.AlertEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("invalid alert payload on %s: %w", topic, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return submit(ctx, ev)
	}
}

// SubscribeAlerts wires the configured alert topic to submit.
func (c *Client) SubscribeAlerts(submit SubmitFunc) error {
	return c.Subscribe(c.cfg.AlertTopic, AlertHandler(submit, 10*time.Second))
}
