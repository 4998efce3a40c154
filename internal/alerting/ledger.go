package alerting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
)

// StatusTransitions lists the moves an operator UI should offer from each
// status. The ledger itself is last-write-wins and does not enforce it.
var StatusTransitions = map[models.AlertStatus][]models.AlertStatus{
	models.StatusUnprocessed: {models.StatusInProgress, models.StatusInterlock, models.StatusBypass, models.StatusCompleted},
	models.StatusInProgress:  {models.StatusInterlock, models.StatusBypass, models.StatusCompleted},
	models.StatusInterlock:   {models.StatusCompleted},
	models.StatusBypass:      {models.StatusCompleted},
	models.StatusCompleted:   {},
}

// Ledger maps alert keys to lifecycle status and keeps the action history.
type Ledger struct {
	store   StatusStore
	now     Clock
	log     *logger.Logger
	mu      sync.RWMutex
	actions []models.ActionRecord
	seq     int
}

func NewLedger(store StatusStore, log *logger.Logger, now Clock) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store: store,
		now:   now,
		log:   log.Named("ledger"),
	}
}

// Status returns the current status, 미처리 when the key is unknown.
func (l *Ledger) Status(ctx context.Context, key models.AlertKey) (models.AlertStatus, error) {
	st, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return models.StatusUnprocessed, nil
	}
	return st, nil
}

func (l *Ledger) SetStatus(ctx context.Context, key models.AlertKey, status models.AlertStatus) error {
	if err := l.store.Set(ctx, key, status); err != nil {
		return err
	}
	l.log.Debug("%s -> %s", key, status)
	return nil
}

// AppendAction stores rec, assigning action_id and action_time when unset.
func (l *Ledger) AppendAction(rec models.ActionRecord) models.ActionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	if rec.ActionID == "" {
		rec.ActionID = fmt.Sprintf("action_%d", l.seq)
	}
	if rec.ActionTime.IsZero() {
		rec.ActionTime = l.now()
	}
	if rec.Status == "" {
		rec.Status = "completed"
	}
	l.actions = append(l.actions, rec)
	return rec
}

// History returns up to limit records, newest first. limit <= 0 means all.
func (l *Ledger) History(limit int) []models.ActionRecord {
	l.mu.RLock()
	out := append([]models.ActionRecord(nil), l.actions...)
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ActionTime.After(out[j].ActionTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (l *Ledger) HistoryLen() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.actions)
}

func (l *Ledger) Stats() models.ActionStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := models.ActionStats{
		TotalActions:   len(l.actions),
		EquipmentStats: make(map[string]map[string]int),
		MethodStats:    map[string]int{"sms": 0, models.AssignedWebLink: 0},
	}

	for i := range l.actions {
		a := l.actions[i]
		switch a.ActionType {
		case models.ActionInterlock:
			stats.InterlockCount++
		case models.ActionBypass:
			stats.BypassCount++
		}

		eq, ok := stats.EquipmentStats[a.Equipment]
		if !ok {
			eq = map[string]int{string(models.ActionInterlock): 0, string(models.ActionBypass): 0}
			stats.EquipmentStats[a.Equipment] = eq
		}
		eq[string(a.ActionType)]++

		if strings.HasPrefix(a.AssignedTo, models.AssignedSMSPref) {
			stats.MethodStats["sms"]++
		} else {
			stats.MethodStats[models.AssignedWebLink]++
		}

		if stats.LastAction == nil || !a.ActionTime.Before(stats.LastAction.ActionTime) {
			stats.LastAction = &a
		}
	}
	return stats
}

func (l *Ledger) Len(ctx context.Context) (int, error) {
	return l.store.Len(ctx)
}

// Sweep drops keys older than retention or without a readable timestamp,
// then evicts the oldest keys while more than maxEntries remain.
func (l *Ledger) Sweep(ctx context.Context, now time.Time, retention time.Duration, maxEntries int) (expired, evicted int, err error) {
	keys, err := l.store.Keys(ctx)
	if err != nil {
		return 0, 0, err
	}

	cutoff := now.Add(-retention)
	var stale, kept []models.AlertKey
	for _, k := range keys {
		ts, perr := k.Time()
		if perr != nil || ts.Before(cutoff) {
			stale = append(stale, k)
			continue
		}
		kept = append(kept, k)
	}

	if len(stale) > 0 {
		if err := l.store.Delete(ctx, stale...); err != nil {
			return 0, 0, err
		}
	}

	if maxEntries > 0 && len(kept) > maxEntries {
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].Timestamp != kept[j].Timestamp {
				return kept[i].Timestamp < kept[j].Timestamp
			}
			return kept[i].StorageKey() < kept[j].StorageKey()
		})
		victims := kept[:len(kept)-maxEntries]
		if err := l.store.Delete(ctx, victims...); err != nil {
			return len(stale), 0, err
		}
		evicted = len(victims)
	}

	return len(stale), evicted, nil
}

func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	l.actions = nil
	l.seq = 0
	l.mu.Unlock()
	return l.store.Reset(ctx)
}
