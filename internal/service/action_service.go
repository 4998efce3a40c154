package service

import (
	"context"
	"fmt"

	"PoscoMonitorAPI/internal/alerting"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/websocket"
)

// ProcessResult is the outcome of one token resolution. Record is set only
// when Result is ResolveOK.
type ProcessResult struct {
	Result alerting.ResolveResult `json:"result"`
	Token  alerting.ActionToken   `json:"token"`
	Record *models.ActionRecord   `json:"record,omitempty"`
}

// ActionService resolves one-time action links.
type ActionService struct {
	tokens    *alerting.TokenRegistry
	ledger    *alerting.Ledger
	equipment *EquipmentService
	hub       Broadcaster
	log       *logger.Logger
}

func NewActionService(tokens *alerting.TokenRegistry, ledger *alerting.Ledger, equipment *EquipmentService, hub Broadcaster, log *logger.Logger) *ActionService {
	return &ActionService{
		tokens:    tokens,
		ledger:    ledger,
		equipment: equipment,
		hub:       hub,
		log:       log.Named("actions"),
	}
}

// Lookup inspects a token without consuming it.
func (s *ActionService) Lookup(token string) (alerting.ActionToken, alerting.ResolveResult) {
	return s.tokens.Lookup(token)
}

// Process consumes token with action. Only the first resolution appends a
// record or touches equipment.
func (s *ActionService) Process(ctx context.Context, token string, action models.ActionType) (ProcessResult, error) {
	t, res := s.tokens.Resolve(token, action)
	if res != alerting.ResolveOK {
		s.log.Info("token %s rejected: %s", token, res)
		return ProcessResult{Result: res, Token: t}, nil
	}

	ev := t.Alert
	key := ev.Key()

	rec := s.ledger.AppendAction(models.ActionRecord{
		AlertID:    key.String(),
		Equipment:  ev.Equipment,
		SensorType: ev.SensorType,
		ActionType: action,
		AssignedTo: models.AssignedWebLink,
		Value:      ev.Value,
		Threshold:  ev.Threshold,
		Severity:   ev.Severity,
		Message:    fmt.Sprintf("웹 링크를 통한 %s 처리", action.Label()),
	})

	if err := s.ledger.SetStatus(ctx, key, action.Status()); err != nil {
		s.log.Error("failed to set status for %s: %v", key, err)
	}
	if err := s.equipment.ApplyAction(ctx, ev.Equipment, action, key.String(), models.AssignedWebLink); err != nil {
		s.log.Error("equipment side effect for %s failed: %v", key, err)
	}

	if s.hub != nil {
		s.hub.Broadcast(websocket.EventAction, rec)
	}
	s.log.Info("%s %s via web link (%s)", ev.Equipment, action, rec.ActionID)

	return ProcessResult{Result: res, Token: t, Record: &rec}, nil
}

func (s *ActionService) History(limit int) []models.ActionRecord {
	return s.ledger.History(limit)
}

func (s *ActionService) Stats() models.ActionStats {
	return s.ledger.Stats()
}

func (s *ActionService) LinkStats() alerting.TokenStats {
	return s.tokens.Stats()
}
