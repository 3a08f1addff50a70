package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/sangha-registry/internal/audit"
	"github.com/jmoiron/sqlx"
)

// AuditRepository reads the audit tables with plain SQL. Writes go through
// gorm inside the unit of work.
type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) audit.RepositoryAPI {
	return &AuditRepository{db: db}
}

type auditRow struct {
	ID            int64     `db:"id"`
	Table         string    `db:"table_name"`
	RecordID      string    `db:"record_id"`
	Operation     string    `db:"operation"`
	OldValues     []byte    `db:"old_values"`
	NewValues     []byte    `db:"new_values"`
	ChangedFields []byte    `db:"changed_fields"`
	UserID        *int64    `db:"user_id"`
	SessionID     *string   `db:"session_id"`
	IPAddress     *string   `db:"ip_address"`
	UserAgent     *string   `db:"user_agent"`
	TransactionID *string   `db:"transaction_id"`
	CreatedAt     time.Time `db:"created_at"`
}

type apiCallRow struct {
	ID            int64     `db:"id"`
	Route         string    `db:"route"`
	Method        string    `db:"method"`
	TransactionID string    `db:"transaction_id"`
	StatusCode    int       `db:"status_code"`
	UserID        *int64    `db:"user_id"`
	IPAddress     *string   `db:"ip_address"`
	DurationMs    int64     `db:"duration_ms"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r *AuditRepository) ListAuditLogs(ctx context.Context, f audit.Filter) ([]*audit.Record, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Table != "" {
		where = append(where, "table_name = ?")
		args = append(args, f.Table)
	}
	if f.RecordID != "" {
		where = append(where, "record_id = ?")
		args = append(args, f.RecordID)
	}
	if f.TransactionID != "" {
		where = append(where, "transaction_id = ?")
		args = append(args, f.TransactionID)
	}
	if f.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *f.UserID)
	}

	query := `SELECT id, table_name, record_id, operation, old_values, new_values, changed_fields,
	                 user_id, session_id, ip_address, user_agent, transaction_id, created_at
	          FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	var rows []auditRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}

	records := make([]*audit.Record, 0, len(rows))
	for _, row := range rows {
		rec := &audit.Record{
			ID:            row.ID,
			Table:         row.Table,
			RecordID:      row.RecordID,
			Operation:     row.Operation,
			UserID:        row.UserID,
			SessionID:     row.SessionID,
			IPAddress:     row.IPAddress,
			UserAgent:     row.UserAgent,
			TransactionID: row.TransactionID,
			CreatedAt:     row.CreatedAt,
		}
		if err := decodeJSON(row.OldValues, &rec.OldValues); err != nil {
			return nil, fmt.Errorf("decode old_values of audit log %d: %w", row.ID, err)
		}
		if err := decodeJSON(row.NewValues, &rec.NewValues); err != nil {
			return nil, fmt.Errorf("decode new_values of audit log %d: %w", row.ID, err)
		}
		if err := decodeJSON(row.ChangedFields, &rec.ChangedFields); err != nil {
			return nil, fmt.Errorf("decode changed_fields of audit log %d: %w", row.ID, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *AuditRepository) ListAPICalls(ctx context.Context, f audit.APICallFilter) ([]*audit.APICallRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.TransactionID != "" {
		where = append(where, "transaction_id = ?")
		args = append(args, f.TransactionID)
	}
	if f.Route != "" {
		where = append(where, "route = ?")
		args = append(args, f.Route)
	}
	if f.StatusCode != 0 {
		where = append(where, "status_code = ?")
		args = append(args, f.StatusCode)
	}

	query := `SELECT id, route, method, transaction_id, status_code, user_id, ip_address, duration_ms, created_at
	          FROM api_call_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	var rows []apiCallRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list api call logs: %w", err)
	}

	records := make([]*audit.APICallRecord, len(rows))
	for i, row := range rows {
		records[i] = &audit.APICallRecord{
			ID:            row.ID,
			Route:         row.Route,
			Method:        row.Method,
			TransactionID: row.TransactionID,
			StatusCode:    row.StatusCode,
			UserID:        row.UserID,
			IPAddress:     row.IPAddress,
			DurationMs:    row.DurationMs,
			CreatedAt:     row.CreatedAt,
		}
	}
	return records, nil
}

func decodeJSON(raw []byte, dest interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
