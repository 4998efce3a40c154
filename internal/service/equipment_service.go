package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/mqtt"
	"PoscoMonitorAPI/internal/repository"
	"PoscoMonitorAPI/internal/websocket"
)

// ErrValidation marks caller mistakes that map to 400.
var ErrValidation = errors.New("validation failed")

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Commander publishes control commands to equipment.
type Commander interface {
	SendEquipmentCommand(cmd mqtt.EquipmentCommand) error
}

// Broadcaster pushes realtime frames to dashboards.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{})
}

type EquipmentUpdate struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Efficiency float64 `json:"efficiency"`
}

type EquipmentService struct {
	repo      repository.IEquipmentRepository
	commander Commander
	hub       Broadcaster
	log       *logger.Logger
}

// NewEquipmentService builds the service. commander and hub may be nil.
func NewEquipmentService(repo repository.IEquipmentRepository, commander Commander, hub Broadcaster, log *logger.Logger) *EquipmentService {
	return &EquipmentService{
		repo:      repo,
		commander: commander,
		hub:       hub,
		log:       log.Named("equipment"),
	}
}

func (s *EquipmentService) List(ctx context.Context) ([]models.Equipment, error) {
	return s.repo.List(ctx)
}

func (s *EquipmentService) Get(ctx context.Context, id string) (*models.Equipment, error) {
	eq, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if eq == nil {
		return nil, fmt.Errorf("equipment %s: %w", id, repository.ErrNotFound)
	}
	return eq, nil
}

func (s *EquipmentService) UpdateStatus(ctx context.Context, id, status string, efficiency float64) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return invalid("status is required")
	}
	if efficiency < 0 || efficiency > 100 {
		return invalid("efficiency must be between 0 and 100")
	}

	if err := s.repo.UpdateStatus(ctx, id, status, efficiency); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("equipment %s: %w", id, repository.ErrNotFound)
		}
		return err
	}

	s.log.Info("%s status -> %s (%.1f%%)", id, status, efficiency)
	if s.hub != nil {
		s.hub.Broadcast(websocket.EventEquipment, EquipmentUpdate{ID: id, Status: status, Efficiency: efficiency})
	}
	return nil
}

// ApplyAction carries out the equipment side of an operator action. An
// interlock stops the machine; both actions publish a command when MQTT is
// wired. Unknown equipment only logs, the action itself still stands.
func (s *EquipmentService) ApplyAction(ctx context.Context, equipmentID string, action models.ActionType, alertID, issuedBy string) error {
	if action == models.ActionInterlock {
		err := s.UpdateStatus(ctx, equipmentID, models.EquipmentStopped, 0)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			s.log.Warn("interlock for unknown equipment %s", equipmentID)
		case err != nil:
			return fmt.Errorf("failed to stop %s: %w", equipmentID, err)
		}
	}

	if s.commander == nil {
		return nil
	}

	cmd := mqtt.EquipmentCommand{
		Command:   mqtt.CommandFor(action),
		Equipment: equipmentID,
		AlertID:   alertID,
		IssuedBy:  issuedBy,
		IssuedAt:  time.Now(),
	}
	if err := s.commander.SendEquipmentCommand(cmd); err != nil {
		s.log.Warn("command %s to %s not delivered: %v", cmd.Command, equipmentID, err)
	}
	return nil
}
