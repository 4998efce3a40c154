package models

import "time"

const (
	EquipmentNormal  = "정상"
	EquipmentStopped = "정지"
)

type Equipment struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	Efficiency      float64 `json:"efficiency"`
	Type            string  `json:"type"`
	LastMaintenance string  `json:"last_maintenance"`
}

type SensorData struct {
	ID         int64   `json:"id,omitempty"`
	Equipment  string  `json:"equipment"`
	SensorType string  `json:"sensor_type"`
	Value      float64 `json:"value"`
	Timestamp  string  `json:"timestamp"`
}

type User struct {
	ID          int64     `json:"id"`
	PhoneNumber string    `json:"phone_number"`
	Name        string    `json:"name"`
	Department  string    `json:"department"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type AlertSubscription struct {
	ID         int64    `json:"id"`
	UserID     int64    `json:"user_id"`
	Equipment  *string  `json:"equipment"`
	SensorType *string  `json:"sensor_type"`
	Severity   Severity `json:"severity"`
	IsActive   bool     `json:"is_active"`
}

type EquipmentUser struct {
	EquipmentID string `json:"equipment_id"`
	UserID      int64  `json:"user_id"`
	Role        string `json:"role"`
	IsPrimary   bool   `json:"is_primary"`
	UserName    string `json:"user_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// UserUpdate holds the editable operator fields. Nil leaves a column as is.
type UserUpdate struct {
	Name       *string `json:"name"`
	Department *string `json:"department"`
	Role       *string `json:"role"`
	IsActive   *bool   `json:"is_active"`
}

func (u UserUpdate) Empty() bool {
	return u.Name == nil && u.Department == nil && u.Role == nil && u.IsActive == nil
}

type EquipmentUserUpdate struct {
	Role      *string `json:"role"`
	IsPrimary *bool   `json:"is_primary"`
}

func (u EquipmentUserUpdate) Empty() bool {
	return u.Role == nil && u.IsPrimary == nil
}

// UserEquipment is one assignment seen from the operator's side.
type UserEquipment struct {
	ID            int64     `json:"id"`
	EquipmentID   string    `json:"equipment_id"`
	Role          string    `json:"role"`
	IsPrimary     bool      `json:"is_primary"`
	CreatedAt     time.Time `json:"created_at"`
	EquipmentName string    `json:"equipment_name"`
	EquipmentType string    `json:"equipment_type"`
}

type UserEquipmentList struct {
	UserID    int64           `json:"user_id"`
	UserName  string          `json:"user_name"`
	Equipment []UserEquipment `json:"equipment"`
	Count     int             `json:"count"`
}

type EquipmentUserCount struct {
	EquipmentID      string `json:"equipment_id"`
	EquipmentName    string `json:"equipment_name"`
	EquipmentType    string `json:"equipment_type"`
	UserCount        int    `json:"user_count"`
	PrimaryUserCount int    `json:"primary_user_count"`
}

type AssignmentSummary struct {
	Summary           []EquipmentUserCount `json:"summary"`
	TotalAssignments  int                  `json:"total_assignments"`
	TotalPrimaryUsers int                  `json:"total_primary_users"`
	EquipmentCount    int                  `json:"equipment_count"`
}

// Subscriber is a resolved SMS recipient for one alert.
type Subscriber struct {
	UserID      int64  `json:"user_id"`
	PhoneNumber string `json:"phone_number"`
	Name        string `json:"name"`
	Department  string `json:"department"`
	Source      string `json:"source"`
}

const (
	SourceEquipmentAssignment = "equipment_assignment"
	SourceSubscription        = "subscription"
)

type SMSRecord struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	AlertID     *int64    `json:"alert_id"`
	PhoneNumber string    `json:"phone_number"`
	Message     string    `json:"message"`
	Status      string    `json:"status"`
	SentAt      time.Time `json:"sent_at"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  struct {
		Database bool   `json:"database"`
		MQTT     string `json:"mqtt"`
		Ledger   bool   `json:"ledger"`
	} `json:"services"`
}
