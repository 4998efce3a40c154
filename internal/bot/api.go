package bot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"PoscoMonitorAPI/internal/models"

	"github.com/go-resty/resty/v2"
)

// APIClient talks to the monitor API over HTTP. It is the bot's only link
// to the server.
type APIClient struct {
	http *resty.Client
}

type apiError struct {
	Detail string `json:"detail"`
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	rc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &APIClient{http: rc}
}

func (c *APIClient) check(resp *resty.Response, err error, what string) error {
	if err != nil {
		return fmt.Errorf("%s failed: %w", what, err)
	}
	if resp.IsError() {
		if e, ok := resp.Error().(*apiError); ok && e.Detail != "" {
			return fmt.Errorf("%s: %s (%d)", what, e.Detail, resp.StatusCode())
		}
		return fmt.Errorf("%s: %s", what, resp.Status())
	}
	return nil
}

// RecentAlerts returns the newest alerts, newest first.
func (c *APIClient) RecentAlerts(ctx context.Context, limit int) ([]models.StoredAlert, error) {
	var alerts []models.StoredAlert
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&alerts).
		SetError(&apiError{}).
		Get("/alerts")
	if err := c.check(resp, err, "fetch alerts"); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *APIClient) Equipment(ctx context.Context) ([]models.Equipment, error) {
	var items []models.Equipment
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&items).
		SetError(&apiError{}).
		Get("/equipment")
	if err := c.check(resp, err, "fetch equipment"); err != nil {
		return nil, err
	}
	return items, nil
}

type alertStatusRequest struct {
	Equipment  string `json:"equipment"`
	SensorType string `json:"sensor_type"`
	Timestamp  string `json:"timestamp"`
	Status     string `json:"status"`
	AssignedTo string `json:"assigned_to"`
	ActionType string `json:"action_type,omitempty"`
}

// UpdateAlertStatus sends the key parts in the body; a joined alert id
// cannot be split back when equipment names carry underscores.
func (c *APIClient) UpdateAlertStatus(ctx context.Context, key models.AlertKey, status models.AlertStatus, assignedTo string, action models.ActionType) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(alertStatusRequest{
			Equipment:  key.Equipment,
			SensorType: key.SensorType,
			Timestamp:  key.Timestamp,
			Status:     string(status),
			AssignedTo: assignedTo,
			ActionType: string(action),
		}).
		SetError(&apiError{}).
		Put("/alerts/status")
	return c.check(resp, err, "update alert status")
}
