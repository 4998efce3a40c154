package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		pattern, topic string
		want           bool
	}{
		{"factory/alerts", "factory/alerts", true},
		{"factory/+/cmd", "factory/press_001/cmd", true},
		{"factory/#", "factory/equipment/press_001/cmd", true},
		{"factory/+/cmd", "factory/press_001/status", false},
		{"factory/alerts", "factory/alerts/extra", false},
		{"factory/alerts/extra", "factory/alerts", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchTopic(tt.pattern, tt.topic), "%s vs %s", tt.pattern, tt.topic)
	}
}

func TestAlertHandlerDecodes(t *testing.T) {
	var got models.AlertEvent
	h := AlertHandler(func(ctx context.Context, ev models.AlertEvent) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		got = ev
		return nil
	}, time.Second)

	payload, _ := json.Marshal(map[string]interface{}{
		"equipment": "weld_001", "sensor_type": "current", "value": 12.5,
		"threshold": 10, "severity": "warning", "timestamp": "2024-01-15T14:30:00.123",
	})

	require.NoError(t, h("factory/alerts", payload))
	assert.Equal(t, "weld_001", got.Equipment)
	assert.Equal(t, 12.5, got.Value)
}

func TestAlertHandlerRejectsGarbage(t *testing.T) {
	called := false
	h := AlertHandler(func(context.Context, models.AlertEvent) error {
		called = true
		return nil
	}, time.Second)

	require.Error(t, h("factory/alerts", []byte("{not json")))
	assert.False(t, called)
}

func TestDispatchFallsBackToWildcard(t *testing.T) {
	c, err := NewClient(config.MQTTConfig{Broker: "localhost", Port: 1883, ClientID: "t"}, logger.NewNop())
	require.NoError(t, err)

	var seen string
	c.handlers["factory/+/cmd"] = func(topic string, _ []byte) error {
		seen = topic
		return errors.New("ignored")
	}

	c.dispatch("factory/press_001/cmd", []byte("{}"))
	assert.Equal(t, "factory/press_001/cmd", seen)
}

func TestCommandTopicAndMapping(t *testing.T) {
	c, err := NewClient(config.MQTTConfig{CommandTopic: "factory/equipment/%s/cmd"}, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "factory/equipment/press_001/cmd", c.CommandTopic("press_001"))
	assert.Equal(t, CommandInterlock, CommandFor(models.ActionInterlock))
	assert.Equal(t, CommandBypass, CommandFor(models.ActionBypass))
	assert.Error(t, c.SendEquipmentCommand(EquipmentCommand{Command: CommandInterlock, Equipment: "press_001"}))
}
