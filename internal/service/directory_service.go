package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/repository"
)

const (
	defaultSensorLimit = 100
	defaultSMSLimit    = 50
	defaultUserRole    = "operator"
)

// DirectoryService covers raw sensor readings, operators, their
// subscriptions and the SMS log.
type DirectoryService struct {
	sensors   repository.ISensorRepository
	users     repository.IUserRepository
	equipment repository.IEquipmentRepository
	log       *logger.Logger
}

func NewDirectoryService(sensors repository.ISensorRepository, users repository.IUserRepository, equipment repository.IEquipmentRepository, log *logger.Logger) *DirectoryService {
	return &DirectoryService{
		sensors:   sensors,
		users:     users,
		equipment: equipment,
		log:       log.Named("directory"),
	}
}

func (s *DirectoryService) ListSensors(ctx context.Context, equipment, sensorType string, limit int) ([]models.SensorData, error) {
	if limit <= 0 {
		limit = defaultSensorLimit
	}
	return s.sensors.List(ctx, equipment, sensorType, limit)
}

func (s *DirectoryService) RecordSensor(ctx context.Context, d models.SensorData) (int64, error) {
	d.Equipment = strings.TrimSpace(d.Equipment)
	d.SensorType = strings.TrimSpace(d.SensorType)
	if d.Equipment == "" || d.SensorType == "" {
		return 0, invalid("equipment and sensor_type are required")
	}
	if d.Timestamp == "" {
		d.Timestamp = time.Now().Format(models.TimestampLayout)
	}
	return s.sensors.Create(ctx, d)
}

func (s *DirectoryService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.ListUsers(ctx)
}

// CreateUser registers an active operator.
func (s *DirectoryService) CreateUser(ctx context.Context, u *models.User) error {
	u.PhoneNumber = strings.TrimSpace(u.PhoneNumber)
	u.Name = strings.TrimSpace(u.Name)
	if u.PhoneNumber == "" || u.Name == "" {
		return invalid("phone_number and name are required")
	}
	if u.Role == "" {
		u.Role = defaultUserRole
	}
	u.IsActive = true

	if err := s.users.CreateUser(ctx, u); err != nil {
		return err
	}
	s.log.Info("user %d (%s) created", u.ID, u.Name)
	return nil
}

// UpdateUser changes the given fields; an empty update is rejected.
func (s *DirectoryService) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) error {
	if upd.Empty() {
		return invalid("nothing to update")
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return invalid("name must not be empty")
		}
		upd.Name = &name
	}
	if err := s.users.UpdateUser(ctx, id, upd); err != nil {
		return userErr(id, err)
	}
	s.log.Info("user %d updated", id)
	return nil
}

// DeactivateUser keeps the row so SMS history still resolves.
func (s *DirectoryService) DeactivateUser(ctx context.Context, id int64) error {
	if err := s.users.DeactivateUser(ctx, id); err != nil {
		return userErr(id, err)
	}
	s.log.Info("user %d deactivated", id)
	return nil
}

// UserEquipment lists the machines an active user is assigned to.
func (s *DirectoryService) UserEquipment(ctx context.Context, id int64) (*models.UserEquipmentList, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		return nil, fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
	}

	items, err := s.users.ListUserEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.UserEquipmentList{UserID: u.ID, UserName: u.Name, Equipment: items, Count: len(items)}, nil
}

func (s *DirectoryService) ListSubscriptions(ctx context.Context, userID int64) ([]models.AlertSubscription, error) {
	return s.users.ListSubscriptions(ctx, userID)
}

// Subscribe adds an active subscription. Nil equipment or sensor type
// matches everything.
func (s *DirectoryService) Subscribe(ctx context.Context, sub *models.AlertSubscription) error {
	sev, err := models.ParseSeverity(string(sub.Severity))
	if err != nil {
		return invalid("%v", err)
	}
	sub.Severity = sev
	sub.IsActive = true
	return s.users.CreateSubscription(ctx, sub)
}

func (s *DirectoryService) Unsubscribe(ctx context.Context, id int64) error {
	if err := s.users.DeleteSubscription(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("subscription %d: %w", id, err)
		}
		return err
	}
	return nil
}

func (s *DirectoryService) ListEquipmentUsers(ctx context.Context, equipmentID string) ([]models.EquipmentUser, error) {
	if err := s.requireEquipment(ctx, equipmentID); err != nil {
		return nil, err
	}
	return s.users.ListEquipmentUsers(ctx, equipmentID)
}

func (s *DirectoryService) AssignEquipmentUser(ctx context.Context, eu models.EquipmentUser) error {
	if eu.UserID <= 0 {
		return invalid("user_id is required")
	}
	if err := s.requireEquipment(ctx, eu.EquipmentID); err != nil {
		return err
	}
	if eu.Role == "" {
		eu.Role = defaultUserRole
	}
	return s.users.AssignEquipmentUser(ctx, eu)
}

// UpdateEquipmentUser edits the role or primary flag of one assignment.
func (s *DirectoryService) UpdateEquipmentUser(ctx context.Context, equipmentID string, userID int64, upd models.EquipmentUserUpdate) error {
	if upd.Empty() {
		return invalid("nothing to update")
	}
	if upd.Role != nil && strings.TrimSpace(*upd.Role) == "" {
		return invalid("role must not be empty")
	}
	if err := s.users.UpdateEquipmentUser(ctx, equipmentID, userID, upd); err != nil {
		return assignmentErr(equipmentID, userID, err)
	}
	return nil
}

func (s *DirectoryService) RemoveEquipmentUser(ctx context.Context, equipmentID string, userID int64) error {
	if err := s.users.RemoveEquipmentUser(ctx, equipmentID, userID); err != nil {
		return assignmentErr(equipmentID, userID, err)
	}
	s.log.Info("user %d removed from %s", userID, equipmentID)
	return nil
}

func (s *DirectoryService) AssignmentSummary(ctx context.Context) (*models.AssignmentSummary, error) {
	return s.users.AssignmentSummary(ctx)
}

func (s *DirectoryService) SMSHistory(ctx context.Context, limit int) ([]models.SMSRecord, error) {
	if limit <= 0 {
		limit = defaultSMSLimit
	}
	return s.users.ListSMS(ctx, limit)
}

func (s *DirectoryService) requireEquipment(ctx context.Context, id string) error {
	eq, err := s.equipment.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if eq == nil {
		return fmt.Errorf("equipment %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func userErr(id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("user %d: %w", id, err)
	}
	return err
}

func assignmentErr(equipmentID string, userID int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("assignment of user %d to %s: %w", userID, equipmentID, err)
	}
	return err
}
