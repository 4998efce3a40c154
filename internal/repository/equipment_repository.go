package repository

import (
	"context"
	"database/sql"
	"fmt"

	"PoscoMonitorAPI/internal/models"
)

type IEquipmentRepository interface {
	List(ctx context.Context) ([]models.Equipment, error)
	GetByID(ctx context.Context, id string) (*models.Equipment, error)
	UpdateStatus(ctx context.Context, id, status string, efficiency float64) error
}

type EquipmentRepository struct {
	db *sql.DB
}

func NewEquipmentRepository(db *sql.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

func (r *EquipmentRepository) List(ctx context.Context) ([]models.Equipment, error) {
	query := `
		SELECT id, name, status, efficiency, type, last_maintenance
		FROM equipment_status
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment: %w", err)
	}
	defer rows.Close()

	list := []models.Equipment{}
	for rows.Next() {
		var e models.Equipment
		if err := rows.Scan(&e.ID, &e.Name, &e.Status, &e.Efficiency, &e.Type, &e.LastMaintenance); err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func (r *EquipmentRepository) GetByID(ctx context.Context, id string) (*models.Equipment, error) {
	query := `
		SELECT id, name, status, efficiency, type, last_maintenance
		FROM equipment_status
		WHERE id = $1
	`

	var e models.Equipment
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Name, &e.Status, &e.Efficiency, &e.Type, &e.LastMaintenance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment %s: %w", id, err)
	}
	return &e, nil
}

// UpdateStatus returns ErrNotFound when the equipment does not exist.
func (r *EquipmentRepository) UpdateStatus(ctx context.Context, id, status string, efficiency float64) error {
	query := `UPDATE equipment_status SET status = $1, efficiency = $2 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, status, efficiency, id)
	if err != nil {
		return fmt.Errorf("failed to update equipment %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
