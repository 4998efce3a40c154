package alerting

import (
	"fmt"
	"math"
	"sync"
	"time"

	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

type Outcome string

const (
	OutcomeNewSignature   Outcome = "new_signature"
	OutcomeAccepted       Outcome = "accepted"
	OutcomeExactDuplicate Outcome = "exact_duplicate"
	OutcomeValueRepeat    Outcome = "value_repeat"
	OutcomeCooldown       Outcome = "cooldown"
	OutcomeLowChange      Outcome = "low_change"
)

// Decision is the verdict for one event.
type Decision struct {
	Accepted  bool    `json:"accepted"`
	Outcome   Outcome `json:"outcome"`
	Reason    string  `json:"reason"`
	Signature string  `json:"signature,omitempty"`

	prior *AlertHistory
}

// Skipped reports a raw-cache hit as opposed to a history-based filter.
func (d Decision) Skipped() bool {
	return d.Outcome == OutcomeExactDuplicate
}

// Engine decides whether an alert event is worth notifying.
type Engine struct {
	cfg     config.AlertingConfig
	history *HistoryStore
	raw     *RawCache
	now     Clock
	log     *logger.Logger
	mu      sync.Mutex
}

func NewEngine(cfg config.AlertingConfig, log *logger.Logger, now Clock) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:     cfg,
		history: NewHistoryStore(cfg.MaxValues),
		raw:     NewRawCache(cfg.RawCacheSize, cfg.RawCacheWindow),
		now:     now,
		log:     log.Named("dedup"),
	}
}

// Cooldown returns the notification cooldown for a severity.
func (e *Engine) Cooldown(sev models.Severity) time.Duration {
	switch sev {
	case models.SeverityError:
		return e.cfg.ErrorCooldown
	case models.SeverityWarning:
		return e.cfg.WarningCooldown
	default:
		return e.cfg.InfoCooldown
	}
}

// Evaluate runs the dedup pipeline on ev and updates history when accepted.
// The check and the mutation happen under one lock.
func (e *Engine) Evaluate(ev models.AlertEvent) Decision {
	ev.Timestamp = models.NormalizeTimestamp(ev.Timestamp)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.raw.Seen(ev) {
		return Decision{Outcome: OutcomeExactDuplicate, Reason: "exact duplicate"}
	}
	e.raw.Add(ev)

	now := e.now()
	sig := Signature(ev.Equipment, ev.SensorType, ev.Severity)

	h, ok := e.history.Get(sig)
	if !ok {
		e.history.Create(sig, ev, now)
		e.log.Debug("new signature %s for %s/%s/%s", sig[:8], ev.Equipment, ev.SensorType, ev.Severity)
		return Decision{Accepted: true, Outcome: OutcomeNewSignature, Reason: "new alert type", Signature: sig}
	}

	last, hasLast := h.LastValue()

	if hasLast && math.Abs(ev.Value-last) < e.cfg.DuplicateEpsilon && now.Sub(h.LastOccurrence) < e.cfg.DebounceWindow {
		h.LastOccurrence = now
		return Decision{Outcome: OutcomeValueRepeat, Reason: "duplicate value repeat", Signature: sig}
	}

	cooldown := e.Cooldown(ev.Severity)
	if elapsed := now.Sub(h.LastNotificationTime); elapsed < cooldown {
		remaining := int((cooldown - elapsed).Seconds())
		return Decision{
			Outcome:   OutcomeCooldown,
			Reason:    fmt.Sprintf("cooldown active, %d seconds remaining", remaining),
			Signature: sig,
		}
	}

	if hasLast && last != 0 {
		ratio := math.Abs(ev.Value-last) / math.Abs(last)
		if ratio < e.cfg.ValueChangeThreshold {
			return Decision{
				Outcome: OutcomeLowChange,
				Reason: fmt.Sprintf("change rate below threshold (%.1f%% < %.1f%%)",
					ratio*100, e.cfg.ValueChangeThreshold*100),
				Signature: sig,
			}
		}
	}

	prior := h.clone()
	e.history.Accept(h, ev.Value, now)
	return Decision{
		Accepted:  true,
		Outcome:   OutcomeAccepted,
		Reason:    fmt.Sprintf("new alert (value=%g)", ev.Value),
		Signature: sig,
		prior:     &prior,
	}
}

// Forget undoes an accepted decision whose alert could not be delivered to
// storage, so a redelivery of the same event is evaluated afresh.
func (e *Engine) Forget(ev models.AlertEvent, d Decision) {
	if !d.Accepted {
		return
	}
	ev.Timestamp = models.NormalizeTimestamp(ev.Timestamp)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.raw.Remove(ev)
	switch {
	case d.prior != nil:
		e.history.Restore(*d.prior)
	case d.Outcome == OutcomeNewSignature:
		e.history.Remove(d.Signature)
	}
	e.log.Debug("forgot %s/%s at %s", ev.Equipment, ev.SensorType, ev.Timestamp)
}

// Deactivate marks the lineages of equipment/sensorType inactive so cleanup
// can collect them.
func (e *Engine) Deactivate(equipment, sensorType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Deactivate(equipment, sensorType)
}

// History returns a copy of the lineage for a signature.
func (e *Engine) History(sig string) (AlertHistory, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.history.Get(sig)
	if !ok {
		return AlertHistory{}, false
	}
	return h.clone(), true
}

func (e *Engine) Histories() []AlertHistory {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Snapshot()
}

type EngineStats struct {
	HistoryCount int `json:"alert_history_count"`
	ActiveCount  int `json:"active_alert_types"`
	RawCacheSize int `json:"raw_alerts_count"`
}

func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EngineStats{
		HistoryCount: e.history.Len(),
		ActiveCount:  e.history.ActiveCount(),
		RawCacheSize: e.raw.Len(),
	}
}

// Sweep drops stale inactive lineages and trims the raw cache.
func (e *Engine) Sweep(now time.Time) (historyRemoved, rawTrimmed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	historyRemoved = e.history.RemoveStale(now.Add(-e.cfg.Retention))
	rawTrimmed = e.raw.Trim()
	return historyRemoved, rawTrimmed
}

func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.Reset()
	e.raw.Reset()
}
