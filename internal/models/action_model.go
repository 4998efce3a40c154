package models

import (
	"fmt"
	"strings"
	"time"
)

type ActionType string

const (
	ActionInterlock ActionType = "interlock"
	ActionBypass    ActionType = "bypass"
)

func ParseActionType(s string) (ActionType, error) {
	switch ActionType(strings.ToLower(strings.TrimSpace(s))) {
	case ActionInterlock:
		return ActionInterlock, nil
	case ActionBypass:
		return ActionBypass, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Status is the ledger state an action leaves the alert in.
func (a ActionType) Status() AlertStatus {
	if a == ActionInterlock {
		return StatusInterlock
	}
	return StatusBypass
}

// Label is the operator-facing Korean name.
func (a ActionType) Label() string {
	if a == ActionInterlock {
		return "인터락"
	}
	return "바이패스"
}

const (
	AssignedWebLink = "web_link"
	AssignedSMSPref = "sms_"
)

// ActionRecord is one entry of the append-only action history.
type ActionRecord struct {
	ActionID   string     `json:"action_id"`
	AlertID    string     `json:"alert_id"`
	Equipment  string     `json:"equipment"`
	SensorType string     `json:"sensor_type"`
	ActionType ActionType `json:"action_type"`
	ActionTime time.Time  `json:"action_time"`
	AssignedTo string     `json:"assigned_to"`
	Value      float64    `json:"value"`
	Threshold  float64    `json:"threshold"`
	Severity   Severity   `json:"severity"`
	Status     string     `json:"status"`
	Message    string     `json:"message"`
}

type ActionStats struct {
	TotalActions   int                       `json:"total_actions"`
	InterlockCount int                       `json:"interlock_count"`
	BypassCount    int                       `json:"bypass_count"`
	EquipmentStats map[string]map[string]int `json:"equipment_stats"`
	MethodStats    map[string]int            `json:"method_stats"`
	LastAction     *ActionRecord             `json:"last_action"`
}
