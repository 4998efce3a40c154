package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"PoscoMonitorAPI/internal/models"
)

var errNoChanges = errors.New("no fields to update")

// IUserRepository covers operators, their subscriptions and SMS history.
type IUserRepository interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) error
	DeactivateUser(ctx context.Context, id int64) error
	ListSubscriptions(ctx context.Context, userID int64) ([]models.AlertSubscription, error)
	CreateSubscription(ctx context.Context, s *models.AlertSubscription) error
	DeleteSubscription(ctx context.Context, id int64) error
	ListEquipmentUsers(ctx context.Context, equipmentID string) ([]models.EquipmentUser, error)
	AssignEquipmentUser(ctx context.Context, eu models.EquipmentUser) error
	UpdateEquipmentUser(ctx context.Context, equipmentID string, userID int64, upd models.EquipmentUserUpdate) error
	RemoveEquipmentUser(ctx context.Context, equipmentID string, userID int64) error
	ListUserEquipment(ctx context.Context, userID int64) ([]models.UserEquipment, error)
	AssignmentSummary(ctx context.Context) (*models.AssignmentSummary, error)
	FindSubscribers(ctx context.Context, ev models.AlertEvent) ([]models.Subscriber, error)
	SaveSMS(ctx context.Context, rec *models.SMSRecord) error
	ListSMS(ctx context.Context, limit int) ([]models.SMSRecord, error)
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT id, phone_number, name, department, role, is_active, created_at
		FROM users
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.PhoneNumber, &u.Name, &u.Department, &u.Role, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (phone_number, name, department, role, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	u.CreatedAt = time.Now()
	err := r.db.QueryRowContext(ctx, query, u.PhoneNumber, u.Name, u.Department, u.Role, u.IsActive, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) ListSubscriptions(ctx context.Context, userID int64) ([]models.AlertSubscription, error) {
	query := `
		SELECT id, user_id, equipment, sensor_type, severity, is_active
		FROM alert_subscriptions
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	subs := []models.AlertSubscription{}
	for rows.Next() {
		var s models.AlertSubscription
		var equipment, sensor sql.NullString
		var sev string
		if err := rows.Scan(&s.ID, &s.UserID, &equipment, &sensor, &sev, &s.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		s.Equipment = nullable(equipment)
		s.SensorType = nullable(sensor)
		s.Severity = models.Severity(sev)
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *UserRepository) CreateSubscription(ctx context.Context, s *models.AlertSubscription) error {
	query := `
		INSERT INTO alert_subscriptions (user_id, equipment, sensor_type, severity, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query, s.UserID, s.Equipment, s.SensorType, string(s.Severity), s.IsActive).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *UserRepository) ListEquipmentUsers(ctx context.Context, equipmentID string) ([]models.EquipmentUser, error) {
	query := `
		SELECT eu.equipment_id, eu.user_id, eu.role, eu.is_primary, u.name, u.phone_number
		FROM equipment_users eu
		JOIN users u ON u.id = eu.user_id
		WHERE eu.equipment_id = $1
		ORDER BY eu.is_primary DESC, u.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, equipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment users: %w", err)
	}
	defer rows.Close()

	out := []models.EquipmentUser{}
	for rows.Next() {
		var eu models.EquipmentUser
		if err := rows.Scan(&eu.EquipmentID, &eu.UserID, &eu.Role, &eu.IsPrimary, &eu.UserName, &eu.PhoneNumber); err != nil {
			return nil, fmt.Errorf("failed to scan equipment user: %w", err)
		}
		out = append(out, eu)
	}
	return out, rows.Err()
}

func (r *UserRepository) AssignEquipmentUser(ctx context.Context, eu models.EquipmentUser) error {
	query := `
		INSERT INTO equipment_users (equipment_id, user_id, role, is_primary, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (equipment_id, user_id) DO UPDATE SET role = excluded.role, is_primary = excluded.is_primary
	`

	if _, err := r.db.ExecContext(ctx, query, eu.EquipmentID, eu.UserID, eu.Role, eu.IsPrimary, time.Now()); err != nil {
		return fmt.Errorf("failed to assign user %d to %s: %w", eu.UserID, eu.EquipmentID, err)
	}
	return nil
}

// FindSubscribers resolves SMS recipients: users assigned to the equipment
// first, then matching active subscriptions. Each user appears once.
func (r *UserRepository) FindSubscribers(ctx context.Context, ev models.AlertEvent) ([]models.Subscriber, error) {
	assigned := `
		SELECT DISTINCT u.id, u.phone_number, u.name, u.department, eu.is_primary
		FROM users u
		JOIN equipment_users eu ON u.id = eu.user_id
		WHERE u.is_active = $1 AND eu.equipment_id = $2
		ORDER BY eu.is_primary DESC, u.name ASC
	`

	var subs []models.Subscriber
	seen := make(map[int64]bool)

	rows, err := r.db.QueryContext(ctx, assigned, true, ev.Equipment)
	if err != nil {
		return nil, fmt.Errorf("failed to query equipment subscribers: %w", err)
	}
	for rows.Next() {
		var s models.Subscriber
		var primary bool
		if err := rows.Scan(&s.UserID, &s.PhoneNumber, &s.Name, &s.Department, &primary); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		s.Source = models.SourceEquipmentAssignment
		if !seen[s.UserID] {
			seen[s.UserID] = true
			subs = append(subs, s)
		}
	}
	rows.Close()

	subscribed := `
		SELECT DISTINCT u.id, u.phone_number, u.name, u.department
		FROM users u
		JOIN alert_subscriptions s ON u.id = s.user_id
		WHERE u.is_active = $1
		AND s.is_active = $2
		AND s.severity = $3
		AND (s.equipment IS NULL OR s.equipment = $4)
		AND (s.sensor_type IS NULL OR s.sensor_type = $5)
	`

	rows, err = r.db.QueryContext(ctx, subscribed, true, true, string(ev.Severity), ev.Equipment, ev.SensorType)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert subscribers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.Subscriber
		if err := rows.Scan(&s.UserID, &s.PhoneNumber, &s.Name, &s.Department); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		s.Source = models.SourceSubscription
		if !seen[s.UserID] {
			seen[s.UserID] = true
			subs = append(subs, s)
		}
	}

	return subs, rows.Err()
}

func (r *UserRepository) SaveSMS(ctx context.Context, rec *models.SMSRecord) error {
	query := `
		INSERT INTO sms_history (user_id, alert_id, phone_number, message, status, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	err := r.db.QueryRowContext(ctx, query, rec.UserID, rec.AlertID, rec.PhoneNumber, rec.Message, rec.Status, rec.SentAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to save sms history: %w", err)
	}
	return nil
}

func (r *UserRepository) ListSMS(ctx context.Context, limit int) ([]models.SMSRecord, error) {
	query := `
		SELECT id, user_id, alert_id, phone_number, message, status, sent_at
		FROM sms_history
		ORDER BY sent_at DESC
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sms history: %w", err)
	}
	defer rows.Close()

	out := []models.SMSRecord{}
	for rows.Next() {
		var rec models.SMSRecord
		var alertID sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.UserID, &alertID, &rec.PhoneNumber, &rec.Message, &rec.Status, &rec.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan sms history: %w", err)
		}
		if alertID.Valid {
			id := alertID.Int64
			rec.AlertID = &id
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetUser returns nil when no user has the id.
func (r *UserRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, phone_number, name, department, role, is_active, created_at
		FROM users
		WHERE id = $1
	`

	var u models.User
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.PhoneNumber, &u.Name, &u.Department, &u.Role, &u.IsActive, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return &u, nil
}

// UpdateUser writes the non-nil fields of upd.
func (r *UserRepository) UpdateUser(ctx context.Context, id int64, upd models.UserUpdate) error {
	var set assignments
	if upd.Name != nil {
		set.add("name", *upd.Name)
	}
	if upd.Department != nil {
		set.add("department", *upd.Department)
	}
	if upd.Role != nil {
		set.add("role", *upd.Role)
	}
	if upd.IsActive != nil {
		set.add("is_active", *upd.IsActive)
	}
	if set.empty() {
		return errNoChanges
	}

	query, args := set.update("users", id)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", id, err)
	}
	return rowsFound(res)
}

// DeactivateUser is a soft delete; assignments and history stay.
func (r *UserRepository) DeactivateUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_active = $1 WHERE id = $2`, false, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate user %d: %w", id, err)
	}
	return rowsFound(res)
}

func (r *UserRepository) DeleteSubscription(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alert_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription %d: %w", id, err)
	}
	return rowsFound(res)
}

// UpdateEquipmentUser edits one assignment. Promoting a user to primary
// demotes every other operator of the same equipment.
func (r *UserRepository) UpdateEquipmentUser(ctx context.Context, equipmentID string, userID int64, upd models.EquipmentUserUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin assignment update: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM equipment_users WHERE equipment_id = $1 AND user_id = $2`, equipmentID, userID).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to find assignment of user %d to %s: %w", userID, equipmentID, err)
	}

	var set assignments
	if upd.Role != nil {
		set.add("role", *upd.Role)
	}
	if upd.IsPrimary != nil {
		if *upd.IsPrimary {
			if _, err := tx.ExecContext(ctx, `UPDATE equipment_users SET is_primary = $1 WHERE equipment_id = $2`, false, equipmentID); err != nil {
				return fmt.Errorf("failed to clear primary of %s: %w", equipmentID, err)
			}
		}
		set.add("is_primary", *upd.IsPrimary)
	}
	if set.empty() {
		return errNoChanges
	}

	query, args := set.update("equipment_users", id)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update assignment of user %d to %s: %w", userID, equipmentID, err)
	}
	return tx.Commit()
}

func (r *UserRepository) RemoveEquipmentUser(ctx context.Context, equipmentID string, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM equipment_users WHERE equipment_id = $1 AND user_id = $2`, equipmentID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove user %d from %s: %w", userID, equipmentID, err)
	}
	return rowsFound(res)
}

// ListUserEquipment lists a user's assignments, primary ones first.
func (r *UserRepository) ListUserEquipment(ctx context.Context, userID int64) ([]models.UserEquipment, error) {
	query := `
		SELECT eu.id, eu.equipment_id, eu.role, eu.is_primary, eu.created_at, es.name, es.type
		FROM equipment_users eu
		JOIN equipment_status es ON eu.equipment_id = es.id
		WHERE eu.user_id = $1
		ORDER BY eu.is_primary DESC, es.name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user equipment: %w", err)
	}
	defer rows.Close()

	out := []models.UserEquipment{}
	for rows.Next() {
		var ue models.UserEquipment
		if err := rows.Scan(&ue.ID, &ue.EquipmentID, &ue.Role, &ue.IsPrimary, &ue.CreatedAt, &ue.EquipmentName, &ue.EquipmentType); err != nil {
			return nil, fmt.Errorf("failed to scan user equipment: %w", err)
		}
		out = append(out, ue)
	}
	return out, rows.Err()
}

// AssignmentSummary counts operators per machine, including machines
// nobody is assigned to.
func (r *UserRepository) AssignmentSummary(ctx context.Context) (*models.AssignmentSummary, error) {
	query := `
		SELECT es.id, es.name, es.type, COUNT(eu.user_id),
			COALESCE(SUM(CASE WHEN eu.is_primary THEN 1 ELSE 0 END), 0)
		FROM equipment_status es
		LEFT JOIN equipment_users eu ON es.id = eu.equipment_id
		GROUP BY es.id, es.name, es.type
		ORDER BY es.name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment summary: %w", err)
	}
	defer rows.Close()

	sum := &models.AssignmentSummary{Summary: []models.EquipmentUserCount{}}
	for rows.Next() {
		var c models.EquipmentUserCount
		if err := rows.Scan(&c.EquipmentID, &c.EquipmentName, &c.EquipmentType, &c.UserCount, &c.PrimaryUserCount); err != nil {
			return nil, fmt.Errorf("failed to scan assignment summary: %w", err)
		}
		sum.Summary = append(sum.Summary, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sum.EquipmentCount = len(sum.Summary)

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment_users`).Scan(&sum.TotalAssignments); err != nil {
		return nil, fmt.Errorf("failed to count assignments: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment_users WHERE is_primary = $1`, true).Scan(&sum.TotalPrimaryUsers); err != nil {
		return nil, fmt.Errorf("failed to count primary users: %w", err)
	}
	return sum, nil
}

// assignments collects the SET clause of a partial update.
type assignments struct {
	cols []string
	args []interface{}
}

func (a *assignments) add(col string, v interface{}) {
	a.args = append(a.args, v)
	a.cols = append(a.cols, fmt.Sprintf("%s = $%d", col, len(a.args)))
}

func (a *assignments) empty() bool {
	return len(a.cols) == 0
}

func (a *assignments) update(table string, id int64) (string, []interface{}) {
	args := append(a.args, id)
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(a.cols, ", "), len(args)), args
}

func rowsFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
