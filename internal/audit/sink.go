package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/sangha-registry/internal"
	auditmodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/audit"
	"github.com/frahmantamala/sangha-registry/internal/core/uow"
	"gorm.io/gorm"
)

const (
	defaultAPICallTimeout  = 5 * time.Second
	defaultAPICallAttempts = 3
	auditInsertBatchSize   = 100
)

// APICall describes a finished HTTP request. Route falls back to the path
// recorded when the request began.
type APICall struct {
	StatusCode int
	Route      string
	Duration   time.Duration
}

type SinkOption func(*Sink)

func WithAPICallTimeout(d time.Duration) SinkOption {
	return func(s *Sink) {
		if d > 0 {
			s.apiCallTimeout = d
		}
	}
}

func WithAPICallAttempts(n int) SinkOption {
	return func(s *Sink) {
		if n > 0 {
			s.apiCallAttempts = n
		}
	}
}

// Sink persists audit entries inside the business transaction and API call
// summaries in their own transaction.
type Sink struct {
	db              *gorm.DB
	apiCallTimeout  time.Duration
	apiCallAttempts int
	metrics         Metrics
	logger          *slog.Logger
}

func NewSink(db *gorm.DB, logger *slog.Logger, metrics Metrics, opts ...SinkOption) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	s := &Sink{
		db:              db,
		apiCallTimeout:  defaultAPICallTimeout,
		apiCallAttempts: defaultAPICallAttempts,
		metrics:         metrics,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write inserts entries through tx with capture suppressed for the duration.
func (s *Sink) Write(ctx context.Context, tx *gorm.DB, u *uow.UnitOfWork, entries []*auditmodel.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	restore := u.Suppress()
	defer restore()

	if err := tx.WithContext(ctx).CreateInBatches(entries, auditInsertBatchSize).Error; err != nil {
		return fmt.Errorf("insert audit entries: %w", err)
	}
	return nil
}

// LogAPICall records the request summary on a fresh transaction. It never
// returns an error: failures are logged and counted.
func (s *Sink) LogAPICall(ctx context.Context, call APICall) {
	rc, ok := internal.CurrentRequest(ctx)
	if !ok {
		s.logger.DebugContext(ctx, "api call summary skipped: no request context")
		return
	}

	route := call.Route
	if route == "" {
		route = rc.Route
	}

	// the request context may already be cancelled once the response is out
	base := context.WithoutCancel(ctx)

	var lastErr error
	for attempt := 1; attempt <= s.apiCallAttempts; attempt++ {
		entry := &auditmodel.APICallLog{
			Route:         route,
			Method:        rc.Method,
			TransactionID: rc.TransactionID,
			StatusCode:    call.StatusCode,
			UserID:        rc.UserID,
			IPAddress:     optional(rc.IPAddress),
			DurationMs:    call.Duration.Milliseconds(),
		}

		writeCtx, cancel := context.WithTimeout(base, s.apiCallTimeout)
		lastErr = s.db.WithContext(writeCtx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(entry).Error
		})
		cancel()

		if lastErr == nil {
			return
		}
		s.logger.DebugContext(ctx, "api call summary attempt failed", "attempt", attempt, "error", lastErr)
	}

	s.metrics.APICallLogFailed()
	s.logger.WarnContext(ctx, "failed to record api call summary",
		"error", lastErr,
		"transaction_id", rc.TransactionID,
		"route", route,
		"method", rc.Method,
		"status_code", call.StatusCode)
}
