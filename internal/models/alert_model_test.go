package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTimestamp(t *testing.T) {
	cases := map[string]string{
		"2024-01-15T14:30:00.123456":      "2024-01-15T14:30:00",
		"2024-01-15T14:30:00+09:00":       "2024-01-15T14:30:00",
		"2024-01-15T14:30:00":             "2024-01-15T14:30:00",
		"yesterday":                       "yesterday",
		"2024-01-15 14:30:00":             "2024-01-15 14:30:00",
		"2024-01-15T14:30:00.5Z trailing": "2024-01-15T14:30:00",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTimestamp(in), in)
	}
}

func TestParseTimestamp(t *testing.T) {
	valid := map[string]string{
		"2024-01-15T14:30:00":        "2024-01-15T14:30:00",
		"2024-01-15T14:30:00.123456": "2024-01-15T14:30:00",
		"2024-01-15T14:30:00+09:00":  "2024-01-15T14:30:00",
		"2024-01-15T14:30:00.5Z":     "2024-01-15T14:30:00",
		" 2024-01-15T14:30:00-0500 ": "2024-01-15T14:30:00",
	}
	for in, want := range valid {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{
		"",
		"not-a-time",
		"yesterday",
		"2024-01-15 14:30:00",
		"2024-01-15T14:30:00.5Z trailing",
		"2024-13-01T14:30:00",
		"2024-01-15T25:00:00",
		"temperature_2024-01-15T14:30:00",
	} {
		_, err := ParseTimestamp(in)
		assert.ErrorIs(t, err, ErrInvalidTimestamp, in)
	}
}

func TestAlertEventNormalizeRejectsBadInput(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)
	base := AlertEvent{Equipment: "press_001", SensorType: "temperature", Severity: "error"}

	bad := base
	bad.Timestamp = "not-a-time"
	_, err := bad.Normalize(now)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	bad = base
	bad.Equipment = "press|001"
	_, err = bad.Normalize(now)
	assert.Error(t, err)

	bad = base
	bad.SensorType = "temp|erature"
	_, err = bad.Normalize(now)
	assert.Error(t, err)
}

func TestAlertKeyValidate(t *testing.T) {
	k, err := AlertKey{Equipment: " line_a_press_01 ", SensorType: "temperature", Timestamp: "2024-01-15T14:30:00.250"}.Validate()
	require.NoError(t, err)
	assert.Equal(t, AlertKey{Equipment: "line_a_press_01", SensorType: "temperature", Timestamp: "2024-01-15T14:30:00"}, k)

	_, err = AlertKey{Equipment: "press_001", SensorType: "temperature", Timestamp: "garbage"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	_, err = AlertKey{SensorType: "temperature", Timestamp: "2024-01-15T14:30:00"}.Validate()
	assert.Error(t, err)

	_, err = AlertKey{Equipment: "a|b", SensorType: "temperature", Timestamp: "2024-01-15T14:30:00"}.Validate()
	assert.Error(t, err)
}

func TestAlertEventNormalize(t *testing.T) {
	now := time.Date(2024, 1, 15, 14, 30, 0, 0, time.Local)

	ev, err := AlertEvent{
		Equipment:  " press_001 ",
		SensorType: "temperature",
		Value:      87,
		Threshold:  85,
		Severity:   "ERROR",
		Timestamp:  "2024-01-15T14:30:00.999",
	}.Normalize(now)
	require.NoError(t, err)
	assert.Equal(t, "press_001", ev.Equipment)
	assert.Equal(t, SeverityError, ev.Severity)
	assert.Equal(t, "2024-01-15T14:30:00", ev.Timestamp)

	ev, err = AlertEvent{Equipment: "weld_002", SensorType: "power", Severity: "info"}.Normalize(now)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T14:30:00", ev.Timestamp)

	_, err = AlertEvent{SensorType: "power", Severity: "info"}.Normalize(now)
	assert.Error(t, err)

	_, err = AlertEvent{Equipment: "weld_002", SensorType: "power", Severity: "critical"}.Normalize(now)
	assert.Error(t, err)
}

func TestAlertKeyForms(t *testing.T) {
	k := AlertKey{Equipment: "press_001", SensorType: "temperature", Timestamp: "2024-01-15T14:30:00"}

	assert.Equal(t, "press_001_temperature_2024-01-15T14:30:00", k.String())

	back, err := ParseStorageKey(k.StorageKey())
	require.NoError(t, err)
	assert.Equal(t, k, back)

	ts, err := k.Time()
	require.NoError(t, err)
	assert.Equal(t, 14, ts.Hour())

	_, err = ParseStorageKey("no-separators")
	assert.Error(t, err)
}

func TestSeverityCodeAndActionStatus(t *testing.T) {
	assert.Equal(t, "HH", SeverityError.Code())
	assert.Equal(t, "H", SeverityWarning.Code())
	assert.Equal(t, "L", SeverityInfo.Code())

	assert.Equal(t, StatusInterlock, ActionInterlock.Status())
	assert.Equal(t, StatusBypass, ActionBypass.Status())

	_, err := ParseActionType("shutdown")
	assert.Error(t, err)
}

func TestSensorLabelAndClockTime(t *testing.T) {
	assert.Equal(t, "온도", SensorLabel("temperature"))
	assert.Equal(t, "humidity", SensorLabel("humidity"))
	assert.Equal(t, "14:30", ClockTime("2024-01-15T14:30:00"))
	assert.Equal(t, "yesterday", ClockTime("yesterday"))
}
