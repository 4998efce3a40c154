package models

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityError:
		return SeverityError, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityInfo:
		return SeverityInfo, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Code is the short level marker used in SMS bodies.
func (s Severity) Code() string {
	switch s {
	case SeverityWarning:
		return "H"
	case SeverityInfo:
		return "L"
	default:
		return "HH"
	}
}

// AlertStatus is the lifecycle state kept in the status ledger.
type AlertStatus string

const (
	StatusUnprocessed AlertStatus = "미처리"
	StatusInProgress  AlertStatus = "처리중"
	StatusInterlock   AlertStatus = "인터락"
	StatusBypass      AlertStatus = "바이패스"
	StatusCompleted   AlertStatus = "완료"
)

func ParseStatus(s string) (AlertStatus, error) {
	switch st := AlertStatus(strings.TrimSpace(s)); st {
	case StatusUnprocessed, StatusInProgress, StatusInterlock, StatusBypass, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// TimestampLayout is the second-resolution form every comparison uses.
const TimestampLayout = "2006-01-02T15:04:05"

var (
	timestampPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	timestampSuffix = regexp.MustCompile(`^(\.\d+)?(Z|[+-]\d{2}:?\d{2})?$`)
)

var ErrInvalidTimestamp = errors.New("timestamp must be ISO-8601 YYYY-MM-DDTHH:MM:SS")

// NormalizeTimestamp truncates an ISO-8601 string to whole seconds.
// Strings without a recognizable prefix are returned unchanged.
func NormalizeTimestamp(ts string) string {
	if m := timestampPrefix.FindString(ts); m != "" {
		return m
	}
	return ts
}

// ParseTimestamp validates an ISO-8601 timestamp and returns it truncated
// to whole seconds. Only a fraction and a zone may follow the seconds.
func ParseTimestamp(ts string) (string, error) {
	ts = strings.TrimSpace(ts)
	m := timestampPrefix.FindString(ts)
	if m == "" || !timestampSuffix.MatchString(ts[len(m):]) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
	}
	if _, err := time.Parse(TimestampLayout, m); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
	}
	return m, nil
}

// AlertEvent is one incoming sensor alert.
type AlertEvent struct {
	Equipment  string   `json:"equipment"`
	SensorType string   `json:"sensor_type"`
	Value      float64  `json:"value"`
	Threshold  float64  `json:"threshold"`
	Severity   Severity `json:"severity"`
	Timestamp  string   `json:"timestamp"`
	Message    string   `json:"message,omitempty"`
}

// Normalize validates the event and returns a copy with a normalized
// timestamp and severity. An empty timestamp becomes now.
func (e AlertEvent) Normalize(now time.Time) (AlertEvent, error) {
	out := e
	out.Equipment = strings.TrimSpace(e.Equipment)
	out.SensorType = strings.TrimSpace(e.SensorType)

	if err := validateKeyParts(out.Equipment, out.SensorType); err != nil {
		return AlertEvent{}, err
	}
	if math.IsNaN(e.Value) || math.IsInf(e.Value, 0) {
		return AlertEvent{}, fmt.Errorf("value must be a finite number")
	}

	sev, err := ParseSeverity(string(e.Severity))
	if err != nil {
		return AlertEvent{}, err
	}
	out.Severity = sev

	if strings.TrimSpace(e.Timestamp) == "" {
		out.Timestamp = now.Format(TimestampLayout)
	} else if out.Timestamp, err = ParseTimestamp(e.Timestamp); err != nil {
		return AlertEvent{}, err
	}

	return out, nil
}

func validateKeyParts(equipment, sensorType string) error {
	switch {
	case equipment == "":
		return fmt.Errorf("equipment is required")
	case sensorType == "":
		return fmt.Errorf("sensor_type is required")
	case strings.Contains(equipment, storageSep):
		return fmt.Errorf("equipment must not contain %q", storageSep)
	case strings.Contains(sensorType, storageSep):
		return fmt.Errorf("sensor_type must not contain %q", storageSep)
	}
	return nil
}

func (e AlertEvent) Key() AlertKey {
	return AlertKey{Equipment: e.Equipment, SensorType: e.SensorType, Timestamp: e.Timestamp}
}

// AlertKey identifies one alert instance.
type AlertKey struct {
	Equipment  string `json:"equipment"`
	SensorType string `json:"sensor_type"`
	Timestamp  string `json:"timestamp"`
}

// Validate checks a client-supplied key and returns it with the timestamp
// truncated to whole seconds.
func (k AlertKey) Validate() (AlertKey, error) {
	k.Equipment = strings.TrimSpace(k.Equipment)
	k.SensorType = strings.TrimSpace(k.SensorType)
	if err := validateKeyParts(k.Equipment, k.SensorType); err != nil {
		return AlertKey{}, err
	}
	ts, err := ParseTimestamp(k.Timestamp)
	if err != nil {
		return AlertKey{}, err
	}
	k.Timestamp = ts
	return k, nil
}

// String is the underscore-joined id clients see.
func (k AlertKey) String() string {
	return k.Equipment + "_" + k.SensorType + "_" + k.Timestamp
}

const storageSep = "|"

// StorageKey is the unambiguous form used by ledger backends.
func (k AlertKey) StorageKey() string {
	return k.Equipment + storageSep + k.SensorType + storageSep + k.Timestamp
}

func ParseStorageKey(s string) (AlertKey, error) {
	parts := strings.SplitN(s, storageSep, 3)
	if len(parts) != 3 {
		return AlertKey{}, fmt.Errorf("malformed storage key %q", s)
	}
	return AlertKey{Equipment: parts[0], SensorType: parts[1], Timestamp: parts[2]}, nil
}

// Time parses the embedded timestamp in local time.
func (k AlertKey) Time() (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, k.Timestamp, time.Local)
}

// StoredAlert is a row of the alerts table joined with its ledger status.
type StoredAlert struct {
	ID         int64       `json:"id"`
	AlertID    string      `json:"alert_id"`
	Equipment  string      `json:"equipment"`
	SensorType string      `json:"sensor_type"`
	Value      float64     `json:"value"`
	Threshold  float64     `json:"threshold"`
	Severity   Severity    `json:"severity"`
	Timestamp  string      `json:"timestamp"`
	Message    string      `json:"message"`
	Status     AlertStatus `json:"status"`
}

func (a StoredAlert) Key() AlertKey {
	return AlertKey{Equipment: a.Equipment, SensorType: a.SensorType, Timestamp: a.Timestamp}
}

func (a StoredAlert) Event() AlertEvent {
	return AlertEvent{
		Equipment:  a.Equipment,
		SensorType: a.SensorType,
		Value:      a.Value,
		Threshold:  a.Threshold,
		Severity:   a.Severity,
		Timestamp:  a.Timestamp,
		Message:    a.Message,
	}
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Equipment string
	Severity  string
	Status    string
	Limit     int
}

var sensorLabels = map[string]string{
	"temperature": "온도",
	"pressure":    "압력",
	"vibration":   "진동",
	"power":       "전력",
	"current":     "전류",
	"voltage":     "전압",
}

// SensorLabel returns the Korean name of a sensor type, or the type itself.
func SensorLabel(sensorType string) string {
	if l, ok := sensorLabels[sensorType]; ok {
		return l
	}
	return sensorType
}

// ClockTime returns HH:MM from a normalized timestamp.
func ClockTime(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 && len(ts) >= i+6 {
		return ts[i+1 : i+6]
	}
	return ts
}
