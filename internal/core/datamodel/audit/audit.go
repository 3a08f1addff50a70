package audit

import (
	"time"

	"gorm.io/datatypes"
)

const (
	OperationCreate = "CREATE"
	OperationUpdate = "UPDATE"
	OperationDelete = "DELETE"
)

// AuditLog is an append-only record of one entity change. Rows are written
// once inside the business transaction and never updated.
type AuditLog struct {
	ID            int64                       `gorm:"primaryKey"`
	EntityTable   string                      `gorm:"column:table_name;not null;index:idx_audit_logs_record"`
	RecordID      string                      `gorm:"column:record_id;not null;index:idx_audit_logs_record"`
	Operation     string                      `gorm:"column:operation;not null"`
	OldValues     datatypes.JSONMap           `gorm:"column:old_values"`
	NewValues     datatypes.JSONMap           `gorm:"column:new_values"`
	ChangedFields datatypes.JSONSlice[string] `gorm:"column:changed_fields"`
	UserID        *int64                      `gorm:"column:user_id;index"`
	SessionID     *string                     `gorm:"column:session_id"`
	IPAddress     *string                     `gorm:"column:ip_address"`
	UserAgent     *string                     `gorm:"column:user_agent"`
	TransactionID *string                     `gorm:"column:transaction_id;index"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// APICallLog is the coarse per-request summary written after the response.
type APICallLog struct {
	ID            int64     `gorm:"primaryKey"`
	Route         string    `gorm:"column:route;not null"`
	Method        string    `gorm:"column:method;not null"`
	TransactionID string    `gorm:"column:transaction_id;not null;index"`
	StatusCode    int       `gorm:"column:status_code;not null"`
	UserID        *int64    `gorm:"column:user_id"`
	IPAddress     *string   `gorm:"column:ip_address"`
	DurationMs    int64     `gorm:"column:duration_ms"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (APICallLog) TableName() string {
	return "api_call_logs"
}
