package service

import (
	"context"
	"fmt"
	"time"

	"PoscoMonitorAPI/internal/alerting"
	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/websocket"
)

// DataStore is the slice of the database maintenance needs.
type DataStore interface {
	ClearAll(ctx context.Context, tables ...string) error
	ResetEquipment(ctx context.Context) error
}

// SensorTables are wiped by a sensor reset. Equipment rows are restored in
// place and user data survives.
var SensorTables = []string{"alerts", "sensor_data"}

type Thresholds struct {
	ValueChangeThreshold float64 `json:"value_change_threshold"`
	DuplicateEpsilon     float64 `json:"duplicate_value_epsilon"`
	DebounceSeconds      float64 `json:"debounce_seconds"`
	MaxHistoryValues     int     `json:"max_history_values"`
	MaxRawAlerts         int     `json:"max_raw_alerts_history"`
	MaxAlertsInMemory    int     `json:"max_alerts_in_memory"`
	RetentionHours       float64 `json:"retention_hours"`
	CleanupIntervalHours float64 `json:"cleanup_interval_hours"`
	TokenTTLHours        float64 `json:"token_ttl_hours"`
}

// MemoryStatus reports the size of every in-memory store.
type MemoryStatus struct {
	AlertHistoryCount  int                   `json:"alert_history_count"`
	ActiveAlertTypes   int                   `json:"active_alert_types"`
	RawAlertsCount     int                   `json:"raw_alerts_count"`
	AlertStatusCount   int                   `json:"alert_status_count"`
	ActionHistoryCount int                   `json:"action_history_count"`
	ActionTokensCount  int                   `json:"action_tokens_count"`
	StatusBackend      string                `json:"status_backend"`
	CooldownSeconds    map[string]float64    `json:"cooldown_seconds"`
	Thresholds         Thresholds            `json:"thresholds"`
	LastCleanup        *alerting.SweepResult `json:"last_cleanup,omitempty"`
	Timestamp          time.Time             `json:"timestamp"`
}

type MaintenanceService struct {
	engine  *alerting.Engine
	tokens  *alerting.TokenRegistry
	ledger  *alerting.Ledger
	sweeper *alerting.Sweeper
	store   DataStore
	cfg     config.AlertingConfig
	hub     Broadcaster
	now     alerting.Clock
	log     *logger.Logger
}

func NewMaintenanceService(
	engine *alerting.Engine,
	tokens *alerting.TokenRegistry,
	ledger *alerting.Ledger,
	sweeper *alerting.Sweeper,
	store DataStore,
	cfg config.AlertingConfig,
	hub Broadcaster,
	log *logger.Logger,
) *MaintenanceService {
	return &MaintenanceService{
		engine:  engine,
		tokens:  tokens,
		ledger:  ledger,
		sweeper: sweeper,
		store:   store,
		cfg:     cfg,
		hub:     hub,
		now:     time.Now,
		log:     log.Named("maintenance"),
	}
}

func (s *MaintenanceService) MemoryStatus(ctx context.Context) (MemoryStatus, error) {
	ledgerLen, err := s.ledger.Len(ctx)
	if err != nil {
		return MemoryStatus{}, fmt.Errorf("failed to size status ledger: %w", err)
	}

	es := s.engine.Stats()
	st := MemoryStatus{
		AlertHistoryCount:  es.HistoryCount,
		ActiveAlertTypes:   es.ActiveCount,
		RawAlertsCount:     es.RawCacheSize,
		AlertStatusCount:   ledgerLen,
		ActionHistoryCount: s.ledger.HistoryLen(),
		ActionTokensCount:  s.tokens.Len(),
		StatusBackend:      s.cfg.StatusBackend,
		CooldownSeconds: map[string]float64{
			string(models.SeverityError):   s.engine.Cooldown(models.SeverityError).Seconds(),
			string(models.SeverityWarning): s.engine.Cooldown(models.SeverityWarning).Seconds(),
			string(models.SeverityInfo):    s.engine.Cooldown(models.SeverityInfo).Seconds(),
		},
		Thresholds: Thresholds{
			ValueChangeThreshold: s.cfg.ValueChangeThreshold,
			DuplicateEpsilon:     s.cfg.DuplicateEpsilon,
			DebounceSeconds:      s.cfg.DebounceWindow.Seconds(),
			MaxHistoryValues:     s.cfg.MaxValues,
			MaxRawAlerts:         s.cfg.RawCacheSize,
			MaxAlertsInMemory:    s.cfg.MaxLedgerEntries,
			RetentionHours:       s.cfg.Retention.Hours(),
			CleanupIntervalHours: s.cfg.CleanupInterval.Hours(),
			TokenTTLHours:        s.cfg.TokenTTL.Hours(),
		},
		Timestamp: s.now(),
	}
	if last, ok := s.sweeper.LastResult(); ok {
		st.LastCleanup = &last
	}
	return st, nil
}

// Cleanup runs one sweep immediately.
func (s *MaintenanceService) Cleanup(ctx context.Context) (alerting.SweepResult, error) {
	res, err := s.sweeper.Sweep(ctx, s.now())
	if err != nil {
		return res, err
	}
	s.log.Info("manual cleanup removed %d entries", res.Total())
	return res, nil
}

// ClearData empties every table, reseeds equipment and resets all
// in-memory stores.
func (s *MaintenanceService) ClearData(ctx context.Context) error {
	return s.reset(ctx, "all")
}

// ClearSensorData keeps users, subscriptions and SMS history.
func (s *MaintenanceService) ClearSensorData(ctx context.Context) error {
	return s.reset(ctx, "sensor", SensorTables...)
}

func (s *MaintenanceService) reset(ctx context.Context, scope string, tables ...string) error {
	if err := s.store.ClearAll(ctx, tables...); err != nil {
		return err
	}
	if err := s.store.ResetEquipment(ctx); err != nil {
		return fmt.Errorf("failed to reseed equipment: %w", err)
	}

	s.engine.Reset()
	s.tokens.Reset()
	if err := s.ledger.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset status ledger: %w", err)
	}

	s.log.Warn("%s data cleared", scope)
	if s.hub != nil {
		s.hub.Broadcast(websocket.EventMaintenance, map[string]string{"reset": scope})
	}
	return nil
}
