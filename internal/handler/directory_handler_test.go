package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PoscoMonitorAPI/internal/logger"
	"PoscoMonitorAPI/internal/models"
	"PoscoMonitorAPI/internal/repository"
	"PoscoMonitorAPI/internal/service"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userCols = []string{"id", "phone_number", "name", "department", "role", "is_active", "created_at"}

func newDirectoryAPI(t *testing.T) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewNop()
	dir := service.NewDirectoryService(repository.NewSensorRepository(db), repository.NewUserRepository(db), repository.NewEquipmentRepository(db), log)

	r := mux.NewRouter()
	NewEquipmentHandler(nil, dir, log).RegisterRoutes(r)
	NewDirectoryHandler(dir, log).RegisterRoutes(r)
	return r, mock
}

func serve(r *mux.Router, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUpdateUserEndpoint(t *testing.T) {
	r, mock := newDirectoryAPI(t)

	mock.ExpectExec(`UPDATE users SET department = \$1 WHERE id = \$2`).
		WithArgs("설비팀", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET role = \$1 WHERE id = \$2`).
		WithArgs("supervisor", int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rec := serve(r, "PUT", "/users/4", `{"department":"설비팀"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(r, "PUT", "/users/404", `{"role":"supervisor"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, "PUT", "/users/4", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(r, "PUT", "/users/abc", `{"role":"supervisor"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateUserEndpoint(t *testing.T) {
	r, mock := newDirectoryAPI(t)

	mock.ExpectExec(`UPDATE users SET is_active = \$1 WHERE id = \$2`).
		WithArgs(false, int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET is_active`).
		WithArgs(false, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, http.StatusOK, serve(r, "DELETE", "/users/3", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, "DELETE", "/users/99", "").Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSubscriptionEndpoint(t *testing.T) {
	r, mock := newDirectoryAPI(t)

	mock.ExpectExec(`DELETE FROM alert_subscriptions`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM alert_subscriptions`).
		WithArgs(int64(12)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, http.StatusOK, serve(r, "DELETE", "/subscriptions/5", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, "DELETE", "/subscriptions/12", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, "DELETE", "/subscriptions/0", "").Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserEquipmentEndpoint(t *testing.T) {
	r, mock := newDirectoryAPI(t)
	created := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM users`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(2, "01011112222", "김철수", "생산1팀", "operator", true, created))
	mock.ExpectQuery(`FROM equipment_users eu`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "equipment_id", "role", "is_primary", "created_at", "name", "type"}).
			AddRow(7, "press_001", "supervisor", true, created, "프레스기 #1", "프레스"))

	rec := serve(r, "GET", "/users/2/equipment", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var list models.UserEquipmentList
	decodeBody(t, rec, &list)
	assert.Equal(t, int64(2), list.UserID)
	assert.Equal(t, "김철수", list.UserName)
	assert.Equal(t, 1, list.Count)
	require.Len(t, list.Equipment, 1)
	assert.Equal(t, "press_001", list.Equipment[0].EquipmentID)
	assert.Equal(t, "프레스기 #1", list.Equipment[0].EquipmentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserEquipmentSkipsInactiveUsers(t *testing.T) {
	r, mock := newDirectoryAPI(t)

	mock.ExpectQuery(`FROM users`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(3, "01055556666", "최지훈", "", "operator", false, time.Now()))
	mock.ExpectQuery(`FROM users`).
		WithArgs(int64(8)).
		WillReturnRows(sqlmock.NewRows(userCols))

	assert.Equal(t, http.StatusNotFound, serve(r, "GET", "/users/3/equipment", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, "GET", "/users/8/equipment", "").Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEquipmentUserEndpoint(t *testing.T) {
	r, mock := newDirectoryAPI(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM equipment_users`).
		WithArgs("press_001", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(`UPDATE equipment_users SET is_primary = \$1 WHERE equipment_id = \$2`).
		WithArgs(false, "press_001").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE equipment_users SET is_primary = \$1 WHERE id = \$2`).
		WithArgs(true, int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM equipment_users`).
		WithArgs("press_001", int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	rec := serve(r, "PUT", "/equipment/press_001/users/2", `{"is_primary":true}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(r, "PUT", "/equipment/press_001/users/5", `{"role":"operator"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, "PUT", "/equipment/press_001/users/2", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveEquipmentUserEndpoint(t *testing.T) {
	r, mock := newDirectoryAPI(t)

	mock.ExpectExec(`DELETE FROM equipment_users`).
		WithArgs("weld_001", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM equipment_users`).
		WithArgs("weld_001", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Equal(t, http.StatusOK, serve(r, "DELETE", "/equipment/weld_001/users/2", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, "DELETE", "/equipment/weld_001/users/3", "").Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEquipmentUsersSummaryEndpoint(t *testing.T) {
	r, mock := newDirectoryAPI(t)

	mock.ExpectQuery(`LEFT JOIN equipment_users`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "type", "user_count", "primary_count"}).
			AddRow("press_001", "프레스기 #1", "프레스", 2, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM equipment_users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`WHERE is_primary = \$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rec := serve(r, "GET", "/equipment/users/summary", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sum models.AssignmentSummary
	decodeBody(t, rec, &sum)
	assert.Equal(t, 1, sum.EquipmentCount)
	assert.Equal(t, 2, sum.TotalAssignments)
	assert.Equal(t, 1, sum.TotalPrimaryUsers)
	require.Len(t, sum.Summary, 1)
	assert.Equal(t, 2, sum.Summary[0].UserCount)
	require.NoError(t, mock.ExpectationsWereMet())
}
