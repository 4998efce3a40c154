package alerting

import "PoscoMonitorAPI/internal/models"

type rawEntry struct {
	equipment  string
	sensorType string
	value      float64
	severity   models.Severity
	timestamp  string
}

func rawOf(ev models.AlertEvent) rawEntry {
	return rawEntry{
		equipment:  ev.Equipment,
		sensorType: ev.SensorType,
		value:      ev.Value,
		severity:   ev.Severity,
		timestamp:  ev.Timestamp,
	}
}

// RawCache is a bounded FIFO of fully qualified payloads used to catch
// byte-identical resubmissions. Not safe for concurrent use.
type RawCache struct {
	entries  []rawEntry
	capacity int
	window   int
}

func NewRawCache(capacity, window int) *RawCache {
	if capacity < 1 {
		capacity = 1
	}
	if window < 1 || window > capacity {
		window = capacity
	}
	return &RawCache{
		entries:  make([]rawEntry, 0, capacity),
		capacity: capacity,
		window:   window,
	}
}

// Seen reports whether ev matches one of the last window entries.
func (c *RawCache) Seen(ev models.AlertEvent) bool {
	e := rawOf(ev)
	start := len(c.entries) - c.window
	if start < 0 {
		start = 0
	}
	for i := len(c.entries) - 1; i >= start; i-- {
		if c.entries[i] == e {
			return true
		}
	}
	return false
}

func (c *RawCache) Add(ev models.AlertEvent) {
	c.entries = append(c.entries, rawOf(ev))
	c.Trim()
}

// Remove drops the most recent entry matching ev.
func (c *RawCache) Remove(ev models.AlertEvent) bool {
	e := rawOf(ev)
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i] == e {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Trim evicts the oldest entries beyond capacity and returns how many went.
func (c *RawCache) Trim() int {
	over := len(c.entries) - c.capacity
	if over <= 0 {
		return 0
	}
	c.entries = append(c.entries[:0:0], c.entries[over:]...)
	return over
}

func (c *RawCache) Len() int {
	return len(c.entries)
}

func (c *RawCache) Reset() {
	c.entries = c.entries[:0]
}
