package audit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	"github.com/frahmantamala/sangha-registry/internal/core/uow"
	"gorm.io/gorm"
)

// Install registers the change tracker on db and wires the capture engine into
// the unit of work manager. The returned sink serves API call summaries.
func Install(db *gorm.DB, mgr *uow.Manager, cfg internal.AuditConfig, logger *slog.Logger, metrics Metrics) (*Sink, error) {
	if err := db.Use(NewTracker(logger, cfg.ExcludedTables...)); err != nil {
		return nil, fmt.Errorf("register audit tracker: %w", err)
	}

	sink := NewSink(db, logger, metrics,
		WithAPICallTimeout(cfg.APICallTimeout),
		WithAPICallAttempts(cfg.APICallMaxAttempts),
	)
	engine := NewEngine(sink, logger, metrics, cfg.ExcludedTables...)

	mgr.BeforeCommit(engine.BeforeCommit)
	mgr.AfterCommit(engine.AfterCommit)

	return sink, nil
}

// Record is the read model of a persisted audit entry.
type Record struct {
	ID            int64          `json:"id"`
	Table         string         `json:"table_name"`
	RecordID      string         `json:"record_id"`
	Operation     string         `json:"operation"`
	OldValues     map[string]any `json:"old_values"`
	NewValues     map[string]any `json:"new_values"`
	ChangedFields []string       `json:"changed_fields"`
	UserID        *int64         `json:"user_id,omitempty"`
	SessionID     *string        `json:"session_id,omitempty"`
	IPAddress     *string        `json:"ip_address,omitempty"`
	UserAgent     *string        `json:"user_agent,omitempty"`
	TransactionID *string        `json:"transaction_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

type APICallRecord struct {
	ID            int64     `json:"id"`
	Route         string    `json:"route"`
	Method        string    `json:"method"`
	TransactionID string    `json:"transaction_id"`
	StatusCode    int       `json:"status_code"`
	UserID        *int64    `json:"user_id,omitempty"`
	IPAddress     *string   `json:"ip_address,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

type Filter struct {
	Table         string
	RecordID      string
	TransactionID string
	UserID        *int64
	Limit         int
	Offset        int
}

type APICallFilter struct {
	TransactionID string
	Route         string
	StatusCode    int
	Limit         int
	Offset        int
}
