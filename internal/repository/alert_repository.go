package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"PoscoMonitorAPI/internal/models"
)

var ErrNotFound = errors.New("record not found")

// IAlertRepository stores accepted alerts.
type IAlertRepository interface {
	Create(ctx context.Context, ev models.AlertEvent) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.StoredAlert, error)
	FindByKey(ctx context.Context, key models.AlertKey) (*models.StoredAlert, error)
	List(ctx context.Context, equipment, severity string, limit int) ([]models.StoredAlert, error)
	Count(ctx context.Context) (int, error)
}

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, equipment, sensor_type, value, threshold, severity, timestamp, message`

// Create inserts an accepted alert and returns its row id.
func (r *AlertRepository) Create(ctx context.Context, ev models.AlertEvent) (int64, error) {
	query := `
		INSERT INTO alerts (equipment, sensor_type, value, threshold, severity, timestamp, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		ev.Equipment,
		ev.SensorType,
		ev.Value,
		ev.Threshold,
		string(ev.Severity),
		ev.Timestamp,
		ev.Message,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create alert: %w", err)
	}

	return id, nil
}

// GetByID returns nil, nil when no row matches.
func (r *AlertRepository) GetByID(ctx context.Context, id int64) (*models.StoredAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`

	a, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert by id: %w", err)
	}
	return a, nil
}

// FindByKey returns the newest row for key, or nil, nil.
func (r *AlertRepository) FindByKey(ctx context.Context, key models.AlertKey) (*models.StoredAlert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE equipment = $1 AND sensor_type = $2 AND timestamp = $3
		ORDER BY id DESC
		LIMIT 1
	`

	a, err := scanAlert(r.db.QueryRowContext(ctx, query, key.Equipment, key.SensorType, key.Timestamp))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find alert %s: %w", key, err)
	}
	return a, nil
}

// List returns the newest alerts, optionally filtered by equipment and severity.
func (r *AlertRepository) List(ctx context.Context, equipment, severity string, limit int) ([]models.StoredAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE 1=1`
	var args []interface{}

	if equipment != "" {
		args = append(args, equipment)
		query += fmt.Sprintf(" AND equipment = $%d", len(args))
	}
	if severity != "" {
		args = append(args, severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.StoredAlert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (r *AlertRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(s rowScanner) (*models.StoredAlert, error) {
	var a models.StoredAlert
	var sev string
	err := s.Scan(&a.ID, &a.Equipment, &a.SensorType, &a.Value, &a.Threshold, &sev, &a.Timestamp, &a.Message)
	if err != nil {
		return nil, err
	}
	a.Severity = models.Severity(sev)
	a.AlertID = a.Key().String()
	return &a, nil
}
