package mqtt

import (
	"fmt"
	"time"

	"PoscoMonitorAPI/internal/models"
)

type CommandType string

const (
	CommandInterlock CommandType = "interlock"
	CommandBypass    CommandType = "bypass"
	CommandResume    CommandType = "resume"
)

// EquipmentCommand is what a line controller receives on its command topic.
type EquipmentCommand struct {
	Command   CommandType `json:"command"`
	Equipment string      `json:"equipment"`
	AlertID   string      `json:"alert_id,omitempty"`
	IssuedBy  string      `json:"issued_by,omitempty"`
	IssuedAt  time.Time   `json:"issued_at"`
}

// CommandFor maps an operator action to the controller command.
func CommandFor(action models.ActionType) CommandType {
	if action == models.ActionInterlock {
		return CommandInterlock
	}
	return CommandBypass
}

func (c *Client) CommandTopic(equipmentID string) string {
	return fmt.Sprintf(c.cfg.CommandTopic, equipmentID)
}

// SendEquipmentCommand publishes cmd to the equipment's command topic.
func (c *Client) SendEquipmentCommand(cmd EquipmentCommand) error {
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}
	topic := c.CommandTopic(cmd.Equipment)

	if cmd.Command == CommandInterlock {
		c.log.Warn("Sending interlock to %s (alert %s)", cmd.Equipment, cmd.AlertID)
	} else {
		c.log.Info("Sending %s to %s", cmd.Command, cmd.Equipment)
	}

	if err := c.PublishJSON(topic, cmd); err != nil {
		return fmt.Errorf("failed to send %s command: %w", cmd.Command, err)
	}
	return nil
}
