package alerting

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"PoscoMonitorAPI/internal/models"
)

var ErrInvalidAlertID = errors.New("invalid alert_id format")

// AlertRef is a parsed client alert id: either a key or a legacy row id.
type AlertRef struct {
	Key   models.AlertKey
	RowID int64
}

func (r AlertRef) IsRowID() bool {
	return r.RowID > 0
}

// ParseAlertID accepts "{type}_{number}_{sensor}_{timestamp}" or a numeric
// row id. The first two segments form the equipment id, so sensor types
// containing underscores cannot be expressed; use the JSON body form instead.
func ParseAlertID(id string) (AlertRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return AlertRef{}, ErrInvalidAlertID
	}

	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		if n <= 0 {
			return AlertRef{}, ErrInvalidAlertID
		}
		return AlertRef{RowID: n}, nil
	}

	parts := strings.Split(id, "_")
	if len(parts) < 4 {
		return AlertRef{}, ErrInvalidAlertID
	}
	for _, p := range parts[:3] {
		if p == "" {
			return AlertRef{}, ErrInvalidAlertID
		}
	}

	ts := strings.Join(parts[3:], "_")
	if unescaped, err := url.PathUnescape(ts); err == nil {
		ts = unescaped
	}

	// A tail that is not a timestamp means the id was split in the wrong
	// place; never guess another equipment.
	key, err := models.AlertKey{
		Equipment:  parts[0] + "_" + parts[1],
		SensorType: parts[2],
		Timestamp:  ts,
	}.Validate()
	if err != nil {
		return AlertRef{}, fmt.Errorf("%w: %v", ErrInvalidAlertID, err)
	}
	return AlertRef{Key: key}, nil
}
