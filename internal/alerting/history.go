package alerting

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	"PoscoMonitorAPI/internal/models"
)

// Signature is the lineage id of a recurring condition. Value and timestamp
// are deliberately left out.
func Signature(equipment, sensorType string, severity models.Severity) string {
	sum := md5.Sum([]byte(equipment + ":" + sensorType + ":" + string(severity)))
	return hex.EncodeToString(sum[:])
}

// AlertHistory tracks one signature.
type AlertHistory struct {
	Signature            string          `json:"signature"`
	Equipment            string          `json:"equipment"`
	SensorType           string          `json:"sensor_type"`
	Severity             models.Severity `json:"severity"`
	FirstOccurrence      time.Time       `json:"first_occurrence"`
	LastOccurrence       time.Time       `json:"last_occurrence"`
	OccurrenceCount      int             `json:"occurrence_count"`
	Values               []float64       `json:"values"`
	IsActive             bool            `json:"is_active"`
	LastNotificationTime time.Time       `json:"last_notification_time"`
}

func (h *AlertHistory) LastValue() (float64, bool) {
	if len(h.Values) == 0 {
		return 0, false
	}
	return h.Values[len(h.Values)-1], true
}

func (h *AlertHistory) pushValue(v float64, max int) {
	h.Values = append(h.Values, v)
	if over := len(h.Values) - max; over > 0 {
		h.Values = append(h.Values[:0:0], h.Values[over:]...)
	}
}

func (h *AlertHistory) clone() AlertHistory {
	c := *h
	c.Values = append([]float64(nil), h.Values...)
	return c
}

// HistoryStore holds AlertHistory by signature. It is not safe for
// concurrent use; Engine serializes access.
type HistoryStore struct {
	entries   map[string]*AlertHistory
	maxValues int
}

func NewHistoryStore(maxValues int) *HistoryStore {
	if maxValues < 1 {
		maxValues = 1
	}
	return &HistoryStore{
		entries:   make(map[string]*AlertHistory),
		maxValues: maxValues,
	}
}

func (s *HistoryStore) Get(sig string) (*AlertHistory, bool) {
	h, ok := s.entries[sig]
	return h, ok
}

// Create starts a lineage for ev. The creating event counts as a notification.
func (s *HistoryStore) Create(sig string, ev models.AlertEvent, now time.Time) *AlertHistory {
	h := &AlertHistory{
		Signature:            sig,
		Equipment:            ev.Equipment,
		SensorType:           ev.SensorType,
		Severity:             ev.Severity,
		FirstOccurrence:      now,
		LastOccurrence:       now,
		OccurrenceCount:      1,
		Values:               []float64{ev.Value},
		IsActive:             true,
		LastNotificationTime: now,
	}
	s.entries[sig] = h
	return h
}

// Accept records a notified repeat.
func (s *HistoryStore) Accept(h *AlertHistory, value float64, now time.Time) {
	h.LastOccurrence = now
	h.OccurrenceCount++
	h.pushValue(value, s.maxValues)
	h.LastNotificationTime = now
	h.IsActive = true
}

// Restore puts back a previously cloned lineage.
func (s *HistoryStore) Restore(h AlertHistory) {
	c := h.clone()
	s.entries[h.Signature] = &c
}

func (s *HistoryStore) Remove(sig string) {
	delete(s.entries, sig)
}

// Deactivate clears is_active on every lineage of equipment/sensorType.
func (s *HistoryStore) Deactivate(equipment, sensorType string) int {
	n := 0
	for _, h := range s.entries {
		if h.Equipment == equipment && h.SensorType == sensorType && h.IsActive {
			h.IsActive = false
			n++
		}
	}
	return n
}

// RemoveStale drops inactive lineages whose last occurrence is before cutoff.
func (s *HistoryStore) RemoveStale(cutoff time.Time) int {
	n := 0
	for sig, h := range s.entries {
		if !h.IsActive && h.LastOccurrence.Before(cutoff) {
			delete(s.entries, sig)
			n++
		}
	}
	return n
}

func (s *HistoryStore) Len() int {
	return len(s.entries)
}

func (s *HistoryStore) ActiveCount() int {
	n := 0
	for _, h := range s.entries {
		if h.IsActive {
			n++
		}
	}
	return n
}

func (s *HistoryStore) Snapshot() []AlertHistory {
	out := make([]AlertHistory, 0, len(s.entries))
	for _, h := range s.entries {
		out = append(out, h.clone())
	}
	return out
}

func (s *HistoryStore) Reset() {
	s.entries = make(map[string]*AlertHistory)
}
