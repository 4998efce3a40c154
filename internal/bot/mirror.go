package bot

import (
	"fmt"
	"sync"
	"time"

	"PoscoMonitorAPI/internal/models"
)

const defaultMirrorSize = 1000

// MirroredAlert is the bot's own copy of a pushed alert. Callback data
// carries its short ID rather than the full alert key.
type MirroredAlert struct {
	ID         string
	Event      models.AlertEvent
	Signature  string
	Status     models.AlertStatus
	AssignedTo string
	ReceivedAt time.Time
}

// Mirror holds alerts the bot has pushed, oldest first, capped at max.
type Mirror struct {
	alerts map[string]*MirroredAlert
	order  []string
	seq    int
	max    int
	mu     sync.RWMutex
}

func NewMirror(max int) *Mirror {
	if max <= 0 {
		max = defaultMirrorSize
	}
	return &Mirror{alerts: make(map[string]*MirroredAlert), max: max}
}

func (m *Mirror) Add(ev models.AlertEvent, sig string, at time.Time) MirroredAlert {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	a := &MirroredAlert{
		ID:         fmt.Sprintf("alert_%d", m.seq),
		Event:      ev,
		Signature:  sig,
		Status:     models.StatusUnprocessed,
		ReceivedAt: at,
	}
	m.alerts[a.ID] = a
	m.order = append(m.order, a.ID)

	for len(m.order) > m.max {
		delete(m.alerts, m.order[0])
		m.order = m.order[1:]
	}
	return *a
}

func (m *Mirror) Get(id string) (MirroredAlert, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[id]
	if !ok {
		return MirroredAlert{}, false
	}
	return *a, true
}

func (m *Mirror) SetStatus(id string, status models.AlertStatus, assignedTo string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return false
	}
	a.Status = status
	if assignedTo != "" {
		a.AssignedTo = assignedTo
	}
	return true
}

// Active returns up to limit unresolved alerts, oldest first.
func (m *Mirror) Active(limit int) []MirroredAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []MirroredAlert
	for _, id := range m.order {
		if a := m.alerts[id]; a.Status != models.StatusCompleted {
			out = append(out, *a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
