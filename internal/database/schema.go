package database

import (
	"context"
	"fmt"

	"PoscoMonitorAPI/internal/config"
	"PoscoMonitorAPI/internal/models"
)

// Tables in dependency order; ClearAll deletes in reverse.
var Tables = []string{
	"equipment_status",
	"users",
	"alerts",
	"sensor_data",
	"alert_subscriptions",
	"equipment_users",
	"sms_history",
}

func schema(idCol string) []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS equipment_status (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			efficiency DOUBLE PRECISION NOT NULL DEFAULT 0,
			type TEXT NOT NULL,
			last_maintenance TEXT NOT NULL DEFAULT ''
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			phone_number TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'operator',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS alerts (
			id %s,
			equipment TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			threshold DOUBLE PRECISION NOT NULL,
			severity TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT ''
		)`, idCol),
		`CREATE INDEX IF NOT EXISTS idx_alerts_key ON alerts (equipment, sensor_type, timestamp)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sensor_data (
			id %s,
			equipment TEXT NOT NULL,
			sensor_type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			timestamp TEXT NOT NULL
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS alert_subscriptions (
			id %s,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			equipment TEXT,
			sensor_type TEXT,
			severity TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS equipment_users (
			id %s,
			equipment_id TEXT NOT NULL REFERENCES equipment_status(id) ON DELETE CASCADE,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role TEXT NOT NULL DEFAULT 'operator',
			is_primary BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (equipment_id, user_id)
		)`, idCol),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS sms_history (
			id %s,
			user_id INTEGER NOT NULL,
			alert_id INTEGER,
			phone_number TEXT NOT NULL,
			message TEXT NOT NULL,
			status TEXT NOT NULL,
			sent_at TIMESTAMP NOT NULL
		)`, idCol),
	}
}

// Migrate creates any missing tables.
func (d *Database) Migrate(ctx context.Context) error {
	idCol := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d.Driver == config.DriverPostgres {
		idCol = "BIGSERIAL PRIMARY KEY"
	}

	for _, stmt := range schema(idCol) {
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// SeedEquipment is the factory floor every fresh database starts with.
var SeedEquipment = []models.Equipment{
	{ID: "press_001", Name: "프레스기 #1", Status: models.EquipmentNormal, Efficiency: 98.2, Type: "프레스", LastMaintenance: "2024-01-15"},
	{ID: "press_002", Name: "프레스기 #2", Status: models.EquipmentNormal, Efficiency: 95.5, Type: "프레스", LastMaintenance: "2024-01-10"},
	{ID: "press_003", Name: "프레스기 #3", Status: models.EquipmentNormal, Efficiency: 96.8, Type: "프레스", LastMaintenance: "2024-01-16"},
	{ID: "press_004", Name: "프레스기 #4", Status: models.EquipmentNormal, Efficiency: 94.1, Type: "프레스", LastMaintenance: "2024-01-17"},
	{ID: "weld_001", Name: "용접기 #1", Status: models.EquipmentNormal, Efficiency: 89.3, Type: "용접", LastMaintenance: "2024-01-12"},
	{ID: "weld_002", Name: "용접기 #2", Status: models.EquipmentNormal, Efficiency: 92.7, Type: "용접", LastMaintenance: "2024-01-13"},
	{ID: "weld_003", Name: "용접기 #3", Status: models.EquipmentNormal, Efficiency: 88.9, Type: "용접", LastMaintenance: "2024-01-11"},
	{ID: "weld_004", Name: "용접기 #4", Status: models.EquipmentNormal, Efficiency: 91.4, Type: "용접", LastMaintenance: "2024-01-14"},
	{ID: "assemble_001", Name: "조립기 #1", Status: models.EquipmentNormal, Efficiency: 96.1, Type: "조립", LastMaintenance: "2024-01-14"},
	{ID: "assemble_002", Name: "조립기 #2", Status: models.EquipmentNormal, Efficiency: 94.3, Type: "조립", LastMaintenance: "2024-01-17"},
	{ID: "assemble_003", Name: "조립기 #3", Status: models.EquipmentNormal, Efficiency: 97.2, Type: "조립", LastMaintenance: "2024-01-18"},
	{ID: "inspect_001", Name: "검사기 #1", Status: models.EquipmentNormal, Efficiency: 91.5, Type: "검사", LastMaintenance: "2024-01-05"},
	{ID: "inspect_002", Name: "검사기 #2", Status: models.EquipmentNormal, Efficiency: 93.8, Type: "검사", LastMaintenance: "2024-01-06"},
	{ID: "inspect_003", Name: "검사기 #3", Status: models.EquipmentNormal, Efficiency: 90.2, Type: "검사", LastMaintenance: "2024-01-07"},
	{ID: "pack_001", Name: "포장기 #1", Status: models.EquipmentNormal, Efficiency: 93.5, Type: "포장", LastMaintenance: "2024-01-19"},
	{ID: "pack_002", Name: "포장기 #2", Status: models.EquipmentNormal, Efficiency: 95.8, Type: "포장", LastMaintenance: "2024-01-20"},
}

const (
	seedInsert = `
		INSERT INTO equipment_status (id, name, status, efficiency, type, last_maintenance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	seedUpsert = `
		INSERT INTO equipment_status (id, name, status, efficiency, type, last_maintenance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			efficiency = excluded.efficiency,
			last_maintenance = excluded.last_maintenance
	`
)

// Seed inserts the default equipment rows, leaving existing ones untouched.
func (d *Database) Seed(ctx context.Context) error {
	return d.seed(ctx, seedInsert)
}

// ResetEquipment restores every seeded machine to its initial state without
// deleting rows, so operator assignments survive.
func (d *Database) ResetEquipment(ctx context.Context) error {
	return d.seed(ctx, seedUpsert)
}

func (d *Database) seed(ctx context.Context, query string) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, e := range SeedEquipment {
		if _, err := tx.ExecContext(ctx, query, e.ID, e.Name, e.Status, e.Efficiency, e.Type, e.LastMaintenance); err != nil {
			return fmt.Errorf("failed to seed %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// ClearAll empties the given tables, children first.
func (d *Database) ClearAll(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		tables = Tables
	}
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := d.DB.ExecContext(ctx, "DELETE FROM "+tables[i]); err != nil {
			return fmt.Errorf("failed to clear %s: %w", tables[i], err)
		}
	}
	return nil
}
