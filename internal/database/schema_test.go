package database

import (
	"context"
	"errors"
	"testing"

	"PoscoMonitorAPI/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, driver string) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return Wrap(db, driver), mock
}

func TestMigrateUsesDriverIdentity(t *testing.T) {
	d, mock := setup(t, config.DriverPostgres)

	stmts := schema("BIGSERIAL PRIMARY KEY")
	for range stmts {
		mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, d.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, stmts[1], "BIGSERIAL")
}

func TestMigrateStopsOnError(t *testing.T) {
	d, mock := setup(t, config.DriverSQLite)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS equipment_status`).WillReturnError(errors.New("disk full"))

	err := d.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSeedInsertsFactoryFloor(t *testing.T) {
	d, mock := setup(t, config.DriverSQLite)

	mock.ExpectBegin()
	for _, e := range SeedEquipment {
		mock.ExpectExec(`INSERT INTO equipment_status`).
			WithArgs(e.ID, e.Name, e.Status, e.Efficiency, e.Type, e.LastMaintenance).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, d.Seed(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Len(t, SeedEquipment, 16)
}

func TestResetEquipmentUpserts(t *testing.T) {
	d, mock := setup(t, config.DriverSQLite)

	mock.ExpectBegin()
	for range SeedEquipment {
		mock.ExpectExec(`ON CONFLICT \(id\) DO UPDATE`).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, d.ResetEquipment(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedRollsBackOnError(t *testing.T) {
	d, mock := setup(t, config.DriverSQLite)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO equipment_status`).WillReturnError(errors.New("locked"))
	mock.ExpectRollback()

	err := d.Seed(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "press_001")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClearAllReverseOrder(t *testing.T) {
	d, mock := setup(t, config.DriverSQLite)

	mock.ExpectExec(`DELETE FROM sensor_data`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM alerts`).WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, d.ClearAll(context.Background(), "alerts", "sensor_data"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth(t *testing.T) {
	d, mock := setup(t, config.DriverSQLite)

	mock.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	require.NoError(t, d.Health(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
