package repository

import (
	"context"
	"database/sql"
	"fmt"

	"PoscoMonitorAPI/internal/models"
)

type ISensorRepository interface {
	Create(ctx context.Context, d models.SensorData) (int64, error)
	List(ctx context.Context, equipment, sensorType string, limit int) ([]models.SensorData, error)
}

type SensorRepository struct {
	db *sql.DB
}

func NewSensorRepository(db *sql.DB) *SensorRepository {
	return &SensorRepository{db: db}
}

func (r *SensorRepository) Create(ctx context.Context, d models.SensorData) (int64, error) {
	query := `
		INSERT INTO sensor_data (equipment, sensor_type, value, timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id int64
	if err := r.db.QueryRowContext(ctx, query, d.Equipment, d.SensorType, d.Value, d.Timestamp).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to store sensor data: %w", err)
	}
	return id, nil
}

func (r *SensorRepository) List(ctx context.Context, equipment, sensorType string, limit int) ([]models.SensorData, error) {
	query := `SELECT id, equipment, sensor_type, value, timestamp FROM sensor_data WHERE 1=1`
	var args []interface{}

	if equipment != "" {
		args = append(args, equipment)
		query += fmt.Sprintf(" AND equipment = $%d", len(args))
	}
	if sensorType != "" {
		args = append(args, sensorType)
		query += fmt.Sprintf(" AND sensor_type = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY timestamp DESC LIMIT $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor data: %w", err)
	}
	defer rows.Close()

	out := []models.SensorData{}
	for rows.Next() {
		var d models.SensorData
		if err := rows.Scan(&d.ID, &d.Equipment, &d.SensorType, &d.Value, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sensor data: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
