package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"PoscoMonitorAPI/internal/alerting"
	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/mqtt"
	"PoscoMonitorAPI/internal/notify"
	"PoscoMonitorAPI/internal/repository"
	"PoscoMonitorAPI/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type memAlerts struct {
	mu   sync.Mutex
	rows []models.StoredAlert
	err  error
}

func (m *memAlerts) Create(_ context.Context, ev models.AlertEvent) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	id := int64(len(m.rows) + 1)
	m.rows = append(m.rows, models.StoredAlert{
		ID: id, Equipment: ev.Equipment, SensorType: ev.SensorType, Value: ev.Value,
		Threshold: ev.Threshold, Severity: ev.Severity, Timestamp: ev.Timestamp, Message: ev.Message,
	})
	return id, nil
}

func (m *memAlerts) GetByID(_ context.Context, id int64) (*models.StoredAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memAlerts) FindByKey(_ context.Context, key models.AlertKey) (*models.StoredAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].Key() == key {
			r := m.rows[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memAlerts) List(_ context.Context, equipment, severity string, limit int) ([]models.StoredAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StoredAlert
	for i := len(m.rows) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.rows[i]
		if equipment != "" && r.Equipment != equipment {
			continue
		}
		if severity != "" && string(r.Severity) != severity {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memAlerts) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

type memEquipment struct {
	mu    sync.Mutex
	items map[string]models.Equipment
}

func newMemEquipment(ids ...string) *memEquipment {
	m := &memEquipment{items: make(map[string]models.Equipment)}
	for _, id := range ids {
		m.items[id] = models.Equipment{ID: id, Status: models.EquipmentNormal, Efficiency: 95}
	}
	return m
}

func (m *memEquipment) List(_ context.Context) ([]models.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Equipment
	for _, e := range m.items {
		out = append(out, e)
	}
	return out, nil
}

func (m *memEquipment) GetByID(_ context.Context, id string) (*models.Equipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memEquipment) UpdateStatus(_ context.Context, id, status string, efficiency float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = status
	e.Efficiency = efficiency
	m.items[id] = e
	return nil
}

func (m *memEquipment) get(id string) models.Equipment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

type recordingHub struct {
	mu     sync.Mutex
	frames []string
}

func (h *recordingHub) Broadcast(msgType string, _ interface{}) {
	h.mu.Lock()
	h.frames = append(h.frames, msgType)
	h.mu.Unlock()
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.frames...)
}

type recordingCommander struct {
	mu   sync.Mutex
	cmds []mqtt.EquipmentCommand
}

func (c *recordingCommander) SendEquipmentCommand(cmd mqtt.EquipmentCommand) error {
	c.mu.Lock()
	c.cmds = append(c.cmds, cmd)
	c.mu.Unlock()
	return nil
}

type recordingDispatcher struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n notify.Notification) []notify.Attempt {
	d.mu.Lock()
	d.got = append(d.got, n)
	d.mu.Unlock()
	return []notify.Attempt{{Channel: "test", Delivered: true}}
}

func (d *recordingDispatcher) last() notify.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.got[len(d.got)-1]
}

type fixture struct {
	clock      *fakeClock
	cfg        config.AlertingConfig
	alerts     *memAlerts
	equipment  *memEquipment
	hub        *recordingHub
	commander  *recordingCommander
	dispatcher *recordingDispatcher
	engine     *alerting.Engine
	tokens     *alerting.TokenRegistry
	ledger     *alerting.Ledger
	equipSvc   *EquipmentService
	alertSvc   *AlertService
	actionSvc  *ActionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewNop()
	clock := &fakeClock{t: time.Date(2024, 1, 15, 14, 30, 5, 0, time.Local)}
	cfg := config.DefaultAlerting()

	f := &fixture{
		clock:      clock,
		cfg:        cfg,
		alerts:     &memAlerts{},
		equipment:  newMemEquipment("press_001", "press_002", "weld_001"),
		hub:        &recordingHub{},
		commander:  &recordingCommander{},
		dispatcher: &recordingDispatcher{},
	}
	f.engine = alerting.NewEngine(cfg, log, clock.Now)
	f.tokens = alerting.NewTokenRegistry(cfg.TokenTTL, log, clock.Now)
	f.ledger = alerting.NewLedger(alerting.NewMemoryStatusStore(), log, clock.Now)
	f.equipSvc = NewEquipmentService(f.equipment, f.commander, f.hub, log)
	f.alertSvc = NewAlertService(f.alerts, f.engine, f.ledger, f.tokens, f.equipSvc, f.dispatcher, f.hub, "http://test", log)
	f.alertSvc.now = clock.Now
	f.actionSvc = NewActionService(f.tokens, f.ledger, f.equipSvc, f.hub, log)
	return f
}

func pressAlert() models.AlertEvent {
	return models.AlertEvent{
		Equipment:  "press_001",
		SensorType: "temperature",
		Value:      87,
		Threshold:  85,
		Severity:   models.SeverityError,
		Timestamp:  "2024-01-15T14:30:00.123",
	}
}

func TestSubmitAcceptsAndDispatches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)

	assert.Equal(t, SubmitOK, res.Status)
	assert.Equal(t, "new alert type", res.Reason)
	assert.Equal(t, "2024-01-15T14:30:00", res.Timestamp)
	assert.Equal(t, "press_001_temperature_2024-01-15T14:30:00", res.AlertID)
	assert.Equal(t, int64(1), res.ID)
	assert.True(t, strings.HasPrefix(res.ActionLink, "http://test/action/"))

	f.alertSvc.Wait()
	n := f.dispatcher.last()
	assert.Equal(t, res.ActionLink, n.Link)
	assert.Equal(t, res.AlertID, n.AlertID)
	assert.Equal(t, int64(1), n.RowID)

	st, err := f.ledger.Status(ctx, n.Alert.Key())
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnprocessed, st)
	assert.Equal(t, 1, f.tokens.Len())
}

func TestSubmitSuppressionOutcomes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)

	res, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)
	assert.Equal(t, SubmitSkipped, res.Status)

	near := pressAlert()
	near.Value = 87.005
	near.Timestamp = "2024-01-15T14:30:01"
	res, err = f.alertSvc.Submit(ctx, near)
	require.NoError(t, err)
	assert.Equal(t, SubmitFiltered, res.Status)
	assert.Contains(t, res.Message, "알림 필터링됨")

	f.clock.Advance(31 * time.Second)
	jump := pressAlert()
	jump.Value = 110
	jump.Timestamp = "2024-01-15T14:30:40"
	res, err = f.alertSvc.Submit(ctx, jump)
	require.NoError(t, err)
	assert.Equal(t, SubmitOK, res.Status)

	count, _ := f.alerts.Count(ctx)
	assert.Equal(t, 2, count)
}

func TestSubmitRejectsInvalidEvent(t *testing.T) {
	f := newFixture(t)

	ev := pressAlert()
	ev.Equipment = " "
	_, err := f.alertSvc.Submit(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	ev = pressAlert()
	ev.Severity = "critical"
	_, err = f.alertSvc.Submit(context.Background(), ev)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestSubmitStoreFailureSkipsNotification(t *testing.T) {
	f := newFixture(t)
	f.alerts.err = errors.New("database is locked")

	_, err := f.alertSvc.Submit(context.Background(), pressAlert())
	require.Error(t, err)

	f.alertSvc.Wait()
	assert.Empty(t, f.dispatcher.got)
	assert.Equal(t, 0, f.tokens.Len())
	assert.Equal(t, 0, f.engine.Stats().HistoryCount)

	f.alerts.err = nil
	res, err := f.alertSvc.Submit(context.Background(), pressAlert())
	require.NoError(t, err)
	assert.Equal(t, SubmitOK, res.Status)

	f.alertSvc.Wait()
	assert.Len(t, f.dispatcher.got, 1)
	assert.Equal(t, 1, f.tokens.Len())
}

func TestSubmitStoreFailureRestoresLineage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)

	f.clock.Advance(f.cfg.ErrorCooldown + time.Second)
	ev := pressAlert()
	ev.Value = 110
	ev.Timestamp = "2024-01-15T14:31:00"

	f.alerts.err = errors.New("database is locked")
	_, err = f.alertSvc.Submit(ctx, ev)
	require.Error(t, err)

	h, ok := f.engine.History(alerting.Signature("press_001", "temperature", models.SeverityError))
	require.True(t, ok)
	assert.Equal(t, 1, h.OccurrenceCount)
	assert.Equal(t, []float64{87}, h.Values)

	f.alerts.err = nil
	res, err := f.alertSvc.Submit(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, SubmitOK, res.Status, res.Reason)
}

func TestUpdateStatusInterlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)
	ref, err := alerting.ParseAlertID(res.AlertID)
	require.NoError(t, err)

	out, err := f.alertSvc.UpdateStatus(ctx, StatusUpdate{
		Ref: ref, Status: "인터락", AssignedTo: "chat_42", ActionType: "interlock",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Action)

	assert.Equal(t, "action_1", out.Action.ActionID)
	assert.Equal(t, "chat_42", out.Action.AssignedTo)
	assert.Equal(t, 87.0, out.Action.Value)
	assert.Equal(t, models.SeverityError, out.Action.Severity)
	assert.Contains(t, out.Message, "인터락")

	eq := f.equipment.get("press_001")
	assert.Equal(t, models.EquipmentStopped, eq.Status)
	assert.Equal(t, 0.0, eq.Efficiency)

	require.Len(t, f.commander.cmds, 1)
	assert.Equal(t, mqtt.CommandInterlock, f.commander.cmds[0].Command)
	assert.Equal(t, res.AlertID, f.commander.cmds[0].AlertID)

	st, _ := f.ledger.Status(ctx, ref.Key)
	assert.Equal(t, models.StatusInterlock, st)
	assert.Contains(t, f.hub.types(), websocket.EventEquipment)
	assert.Contains(t, f.hub.types(), websocket.EventStatus)
}

func TestUpdateStatusCompletedDeactivatesLineage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)

	_, err = f.alertSvc.UpdateStatus(ctx, StatusUpdate{Ref: alerting.AlertRef{RowID: res.ID}, Status: "완료"})
	require.NoError(t, err)

	h, ok := f.engine.History(alerting.Signature("press_001", "temperature", models.SeverityError))
	require.True(t, ok)
	assert.False(t, h.IsActive)
	assert.Equal(t, 0, f.ledger.HistoryLen())
}

func TestUpdateStatusBypassKeepsEquipmentRunning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ref := alerting.AlertRef{Key: models.AlertKey{Equipment: "weld_001", SensorType: "current", Timestamp: "2024-01-15T14:00:00"}}
	out, err := f.alertSvc.UpdateStatus(ctx, StatusUpdate{Ref: ref, Status: "바이패스", AssignedTo: "sms_01011112222", ActionType: "bypass"})
	require.NoError(t, err)

	assert.Equal(t, models.ActionBypass, out.Action.ActionType)
	assert.Zero(t, out.Action.Value)
	assert.Equal(t, models.EquipmentNormal, f.equipment.get("weld_001").Status)
	require.Len(t, f.commander.cmds, 1)
	assert.Equal(t, mqtt.CommandBypass, f.commander.cmds[0].Command)
}

func TestUpdateStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.alertSvc.UpdateStatus(ctx, StatusUpdate{Ref: alerting.AlertRef{RowID: 99}, Status: "완료"})
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	_, err = f.alertSvc.UpdateStatus(ctx, StatusUpdate{Ref: alerting.AlertRef{RowID: 1}, Status: "done"})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.alertSvc.UpdateStatus(ctx, StatusUpdate{Ref: alerting.AlertRef{RowID: 1}, Status: "완료", ActionType: "shutdown"})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestListAttachesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)

	other := pressAlert()
	other.Equipment = "press_002"
	_, err = f.alertSvc.Submit(ctx, other)
	require.NoError(t, err)

	_, err = f.alertSvc.UpdateStatus(ctx, StatusUpdate{Ref: alerting.AlertRef{RowID: first.ID}, Status: "완료"})
	require.NoError(t, err)

	all, err := f.alertSvc.List(ctx, models.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "press_002", all[0].Equipment)
	assert.Equal(t, models.StatusUnprocessed, all[0].Status)
	assert.Equal(t, "press_002_temperature_2024-01-15T14:30:00", all[0].AlertID)

	done, err := f.alertSvc.List(ctx, models.AlertFilter{Status: "완료"})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, first.ID, done[0].ID)

	_, err = f.alertSvc.List(ctx, models.AlertFilter{Status: "closed"})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestGetAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)

	a, err := f.alertSvc.Get(ctx, alerting.AlertRef{RowID: res.ID})
	require.NoError(t, err)
	assert.Equal(t, res.AlertID, a.AlertID)
	assert.Equal(t, models.StatusUnprocessed, a.Status)

	_, err = f.alertSvc.Get(ctx, alerting.AlertRef{Key: models.AlertKey{Equipment: "x_1", SensorType: "y", Timestamp: "z"}})
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestProcessTokenAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)
	f.alertSvc.Wait()
	token := f.dispatcher.last().Token

	res, err := f.actionSvc.Process(ctx, token, models.ActionInterlock)
	require.NoError(t, err)
	assert.Equal(t, alerting.ResolveOK, res.Result)
	require.NotNil(t, res.Record)
	assert.Equal(t, models.AssignedWebLink, res.Record.AssignedTo)
	assert.Equal(t, "press_001_temperature_2024-01-15T14:30:00", res.Record.AlertID)

	assert.Equal(t, models.EquipmentStopped, f.equipment.get("press_001").Status)
	st, _ := f.ledger.Status(ctx, res.Token.Alert.Key())
	assert.Equal(t, models.StatusInterlock, st)

	again, err := f.actionSvc.Process(ctx, token, models.ActionBypass)
	require.NoError(t, err)
	assert.Equal(t, alerting.ResolveAlreadyProcessed, again.Result)
	assert.Nil(t, again.Record)
	assert.Equal(t, 1, f.ledger.HistoryLen())
	assert.Len(t, f.commander.cmds, 1)

	stats := f.actionSvc.Stats()
	assert.Equal(t, 1, stats.InterlockCount)
	assert.Equal(t, 1, f.actionSvc.LinkStats().ProcessedLinks)
}

func TestProcessExpiredTokenLeavesEquipment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev := pressAlert()
	ev.Equipment = "press_002"
	_, err := f.alertSvc.Submit(ctx, ev)
	require.NoError(t, err)
	f.alertSvc.Wait()
	token := f.dispatcher.last().Token

	f.clock.Advance(25 * time.Hour)

	res, err := f.actionSvc.Process(ctx, token, models.ActionInterlock)
	require.NoError(t, err)
	assert.Equal(t, alerting.ResolveExpired, res.Result)
	assert.Equal(t, models.EquipmentNormal, f.equipment.get("press_002").Status)
	assert.Equal(t, 0, f.ledger.HistoryLen())
	assert.Empty(t, f.commander.cmds)

	_, lookup := f.actionSvc.Lookup(token)
	assert.Equal(t, alerting.ResolveNotFound, lookup)
}

func TestEquipmentServiceErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.equipSvc.Get(ctx, "press_999")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	err = f.equipSvc.UpdateStatus(ctx, "press_999", models.EquipmentStopped, 0)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	err = f.equipSvc.UpdateStatus(ctx, "press_001", "", 50)
	assert.True(t, errors.Is(err, ErrValidation))

	err = f.equipSvc.UpdateStatus(ctx, "press_001", models.EquipmentNormal, 120)
	assert.True(t, errors.Is(err, ErrValidation))

	require.NoError(t, f.equipSvc.ApplyAction(ctx, "press_999", models.ActionInterlock, "a", "b"))
}

func TestApplyActionWithoutCommander(t *testing.T) {
	eq := newMemEquipment("press_001")
	svc := NewEquipmentService(eq, nil, nil, logger.NewNop())

	require.NoError(t, svc.ApplyAction(context.Background(), "press_001", models.ActionInterlock, "a", "web_link"))
	assert.Equal(t, models.EquipmentStopped, eq.get("press_001").Status)
}

type fakeStore struct {
	cleared [][]string
	resets  int
	err     error
}

func (s *fakeStore) ClearAll(_ context.Context, tables ...string) error {
	s.cleared = append(s.cleared, tables)
	return s.err
}

func (s *fakeStore) ResetEquipment(_ context.Context) error {
	s.resets++
	return nil
}

func newMaintenance(f *fixture, store DataStore) *MaintenanceService {
	log := logger.NewNop()
	sweeper := alerting.NewSweeper(f.engine, f.tokens, f.ledger, f.cfg, log, f.clock.Now)
	m := NewMaintenanceService(f.engine, f.tokens, f.ledger, sweeper, store, f.cfg, f.hub, log)
	m.now = f.clock.Now
	return m
}

func TestClearSensorDataResetsStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store := &fakeStore{}
	m := newMaintenance(f, store)

	res, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)
	_, err = f.alertSvc.UpdateStatus(ctx, StatusUpdate{Ref: alerting.AlertRef{RowID: res.ID}, Status: "인터락", ActionType: "interlock"})
	require.NoError(t, err)
	f.alertSvc.Wait()

	require.NoError(t, m.ClearSensorData(ctx))

	require.Len(t, store.cleared, 1)
	assert.Equal(t, SensorTables, store.cleared[0])
	assert.Equal(t, 1, store.resets)

	ms, err := m.MemoryStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, ms.AlertHistoryCount)
	assert.Zero(t, ms.RawAlertsCount)
	assert.Zero(t, ms.AlertStatusCount)
	assert.Zero(t, ms.ActionHistoryCount)
	assert.Zero(t, ms.ActionTokensCount)
	assert.Contains(t, f.hub.types(), websocket.EventMaintenance)
}

func TestClearDataPropagatesStoreError(t *testing.T) {
	f := newFixture(t)
	m := newMaintenance(f, &fakeStore{err: errors.New("readonly")})

	_, err := f.alertSvc.Submit(context.Background(), pressAlert())
	require.NoError(t, err)

	require.Error(t, m.ClearData(context.Background()))
	assert.Equal(t, 1, f.tokens.Len())
}

func TestMemoryStatusAndCleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := newMaintenance(f, &fakeStore{})

	_, err := f.alertSvc.Submit(ctx, pressAlert())
	require.NoError(t, err)

	ms, err := m.MemoryStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ms.AlertHistoryCount)
	assert.Equal(t, 1, ms.AlertStatusCount)
	assert.Equal(t, 1, ms.ActionTokensCount)
	assert.Equal(t, 30.0, ms.CooldownSeconds["error"])
	assert.Equal(t, 0.05, ms.Thresholds.ValueChangeThreshold)
	assert.Nil(t, ms.LastCleanup)

	f.clock.Advance(25 * time.Hour)
	res, err := m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TokensExpired)
	assert.Equal(t, 1, res.LedgerExpired)

	ms, err = m.MemoryStatus(ctx)
	require.NoError(t, err)
	require.NotNil(t, ms.LastCleanup)
	assert.Equal(t, 0, ms.ActionTokensCount)
}
