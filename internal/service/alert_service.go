package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"PoscoMonitorAPI/internal/alerting"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/notify"
	"PoscoMonitorAPI/internal/repository"
	"PoscoMonitorAPI/internal/websocket"
)

const (
	SubmitOK       = "ok"
	SubmitFiltered = "filtered"
	SubmitSkipped  = "skipped"

	defaultAlertLimit = 50
	maxAlertLimit     = 1000
)

// Dispatcher delivers an accepted alert over every notification channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, n notify.Notification) []notify.Attempt
}

// SubmitResult is what a publisher gets back for one alert.
type SubmitResult struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	Reason     string `json:"reason"`
	Timestamp  string `json:"timestamp"`
	AlertID    string `json:"alert_id,omitempty"`
	ID         int64  `json:"id,omitempty"`
	ActionLink string `json:"action_link,omitempty"`
}

type StatusUpdate struct {
	Ref        alerting.AlertRef
	Status     string
	AssignedTo string
	ActionType string
}

type StatusChange struct {
	AlertID    string             `json:"alert_id"`
	Status     models.AlertStatus `json:"status"`
	AssignedTo string             `json:"assigned_to,omitempty"`
	ActionType models.ActionType  `json:"action_type,omitempty"`
}

type StatusUpdateResult struct {
	Status  string               `json:"status"`
	Message string               `json:"message"`
	AlertID string               `json:"alert_id"`
	Action  *models.ActionRecord `json:"action,omitempty"`
}

// AlertService runs the intake pipeline: validate, dedup, persist, mark
// unprocessed, issue a token and fan out notifications.
type AlertService struct {
	alerts     repository.IAlertRepository
	engine     *alerting.Engine
	ledger     *alerting.Ledger
	tokens     *alerting.TokenRegistry
	equipment  *EquipmentService
	dispatcher Dispatcher
	hub        Broadcaster
	publicURL  string
	now        alerting.Clock
	log        *logger.Logger

	dispatchTimeout time.Duration
	wg              sync.WaitGroup
}

func NewAlertService(
	alerts repository.IAlertRepository,
	engine *alerting.Engine,
	ledger *alerting.Ledger,
	tokens *alerting.TokenRegistry,
	equipment *EquipmentService,
	dispatcher Dispatcher,
	hub Broadcaster,
	publicURL string,
	log *logger.Logger,
) *AlertService {
	return &AlertService{
		alerts:          alerts,
		engine:          engine,
		ledger:          ledger,
		tokens:          tokens,
		equipment:       equipment,
		dispatcher:      dispatcher,
		hub:             hub,
		publicURL:       publicURL,
		now:             time.Now,
		log:             log.Named("alerts"),
		dispatchTimeout: 30 * time.Second,
	}
}

// Submit runs one event through the pipeline. Suppressed events are a
// normal result, not an error. Notification happens in the background and
// never affects the result.
func (s *AlertService) Submit(ctx context.Context, in models.AlertEvent) (SubmitResult, error) {
	ev, err := in.Normalize(s.now())
	if err != nil {
		return SubmitResult{}, invalid("%v", err)
	}

	s.log.Debug("received %s/%s severity=%s value=%v threshold=%v",
		ev.Equipment, ev.SensorType, ev.Severity, ev.Value, ev.Threshold)

	decision := s.engine.Evaluate(ev)
	if !decision.Accepted {
		status := SubmitFiltered
		if decision.Skipped() {
			status = SubmitSkipped
		}
		s.log.Info("%s %s/%s: %s", status, ev.Equipment, ev.SensorType, decision.Reason)
		return SubmitResult{
			Status:    status,
			Message:   "알림 필터링됨: " + decision.Reason,
			Reason:    decision.Reason,
			Timestamp: ev.Timestamp,
		}, nil
	}

	id, err := s.alerts.Create(ctx, ev)
	if err != nil {
		s.engine.Forget(ev, decision)
		return SubmitResult{}, fmt.Errorf("failed to store alert: %w", err)
	}

	key := ev.Key()
	if err := s.ledger.SetStatus(ctx, key, models.StatusUnprocessed); err != nil {
		s.log.Warn("failed to record status for %s: %v", key, err)
	}

	token := s.tokens.Issue(ev, id)
	link := alerting.Link(s.publicURL, token.Token)

	s.log.Info("accepted %s (#%d): %s", key, id, decision.Reason)

	s.dispatchAsync(notify.Notification{
		Alert:   ev,
		AlertID: key.String(),
		RowID:   id,
		Token:   token.Token,
		Link:    link,
	})

	return SubmitResult{
		Status:     SubmitOK,
		Message:    "알림이 저장되었습니다.",
		Reason:     decision.Reason,
		Timestamp:  ev.Timestamp,
		AlertID:    key.String(),
		ID:         id,
		ActionLink: link,
	}, nil
}

// Ingest adapts Submit for message-bus consumers.
func (s *AlertService) Ingest(ctx context.Context, ev models.AlertEvent) error {
	res, err := s.Submit(ctx, ev)
	if err != nil {
		return err
	}
	s.log.Debug("ingested %s/%s: %s", ev.Equipment, ev.SensorType, res.Status)
	return nil
}

func (s *AlertService) dispatchAsync(n notify.Notification) {
	if s.dispatcher == nil {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()

		for _, a := range s.dispatcher.Dispatch(ctx, n) {
			s.log.Debug("%s via %s delivered=%v %s", n.AlertID, a.Channel, a.Delivered, a.Error)
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (s *AlertService) Wait() {
	s.wg.Wait()
}

// List returns stored alerts newest first, each with its ledger status.
// The status filter applies after the row limit.
func (s *AlertService) List(ctx context.Context, f models.AlertFilter) ([]models.StoredAlert, error) {
	var want models.AlertStatus
	if f.Status != "" {
		st, err := models.ParseStatus(f.Status)
		if err != nil {
			return nil, invalid("%v", err)
		}
		want = st
	}
	if f.Severity != "" {
		if _, err := models.ParseSeverity(f.Severity); err != nil {
			return nil, invalid("%v", err)
		}
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	if limit > maxAlertLimit {
		limit = maxAlertLimit
	}

	rows, err := s.alerts.List(ctx, f.Equipment, f.Severity, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.StoredAlert, 0, len(rows))
	for _, a := range rows {
		key := a.Key()
		st, err := s.ledger.Status(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read status for %s: %w", key, err)
		}
		if want != "" && st != want {
			continue
		}
		a.AlertID = key.String()
		a.Status = st
		out = append(out, a)
	}
	return out, nil
}

// Resolve turns a parsed client id into a ledger key. Row ids must exist;
// key ids may refer to alerts that were never persisted, in which case the
// returned row is nil.
func (s *AlertService) Resolve(ctx context.Context, ref alerting.AlertRef) (models.AlertKey, *models.StoredAlert, error) {
	if ref.IsRowID() {
		a, err := s.alerts.GetByID(ctx, ref.RowID)
		if err != nil {
			return models.AlertKey{}, nil, err
		}
		if a == nil {
			return models.AlertKey{}, nil, fmt.Errorf("alert %d: %w", ref.RowID, repository.ErrNotFound)
		}
		return a.Key(), a, nil
	}

	a, err := s.alerts.FindByKey(ctx, ref.Key)
	if err != nil {
		return models.AlertKey{}, nil, err
	}
	return ref.Key, a, nil
}

// Get returns one alert with its status.
func (s *AlertService) Get(ctx context.Context, ref alerting.AlertRef) (*models.StoredAlert, error) {
	key, a, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("alert %s: %w", key, repository.ErrNotFound)
	}
	st, err := s.ledger.Status(ctx, key)
	if err != nil {
		return nil, err
	}
	a.AlertID = key.String()
	a.Status = st
	return a, nil
}

// UpdateStatus is the manual status transition. The ledger is
// last-write-wins; an action type also records the action and applies its
// equipment side effect.
func (s *AlertService) UpdateStatus(ctx context.Context, u StatusUpdate) (*StatusUpdateResult, error) {
	status, err := models.ParseStatus(u.Status)
	if err != nil {
		return nil, invalid("%v", err)
	}

	var action models.ActionType
	if u.ActionType != "" {
		if action, err = models.ParseActionType(u.ActionType); err != nil {
			return nil, invalid("%v", err)
		}
	}

	ref := u.Ref
	if !ref.IsRowID() {
		if ref.Key, err = ref.Key.Validate(); err != nil {
			return nil, invalid("%v", err)
		}
	}

	key, stored, err := s.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.SetStatus(ctx, key, status); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	if status == models.StatusCompleted {
		s.engine.Deactivate(key.Equipment, key.SensorType)
	}

	res := &StatusUpdateResult{
		Status:  "ok",
		Message: fmt.Sprintf("알림 상태가 '%s'로 업데이트되었습니다.", status),
		AlertID: key.String(),
	}

	if action != "" {
		rec := models.ActionRecord{
			AlertID:    key.String(),
			Equipment:  key.Equipment,
			SensorType: key.SensorType,
			ActionType: action,
			AssignedTo: u.AssignedTo,
			Message:    fmt.Sprintf("%s 조치 (%s)", action.Label(), u.AssignedTo),
		}
		if stored != nil {
			rec.Value = stored.Value
			rec.Threshold = stored.Threshold
			rec.Severity = stored.Severity
		}
		rec = s.ledger.AppendAction(rec)
		res.Action = &rec

		if err := s.equipment.ApplyAction(ctx, key.Equipment, action, key.String(), u.AssignedTo); err != nil {
			s.log.Error("equipment side effect for %s failed: %v", key, err)
		}
	}

	s.log.Info("%s -> %s by %q", key, status, u.AssignedTo)
	if s.hub != nil {
		s.hub.Broadcast(websocket.EventStatus, StatusChange{
			AlertID:    key.String(),
			Status:     status,
			AssignedTo: u.AssignedTo,
			ActionType: action,
		})
	}
	return res, nil
}
