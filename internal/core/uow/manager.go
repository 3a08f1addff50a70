package uow

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

// Hook runs inside the transaction after the caller's work and before commit.
// Returning an error rolls the whole unit back.
type Hook func(ctx context.Context, tx *gorm.DB, u *UnitOfWork) error

// AfterHook runs once the transaction has committed.
type AfterHook func(ctx context.Context, u *UnitOfWork)

type options struct {
	suppressAudit bool
}

type Option func(*options)

// WithAuditSuppressed runs the unit with change capture disabled. Reserved for
// trusted maintenance paths such as seeding.
func WithAuditSuppressed() Option {
	return func(o *options) { o.suppressAudit = true }
}

type Manager struct {
	db           *gorm.DB
	beforeCommit []Hook
	afterCommit  []AfterHook
	logger       *slog.Logger
}

func NewManager(db *gorm.DB, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{db: db, logger: logger}
}

func (m *Manager) DB() *gorm.DB {
	return m.db
}

// BeforeCommit registers a hook. Not safe to call once Do is in use.
func (m *Manager) BeforeCommit(h Hook) {
	m.beforeCommit = append(m.beforeCommit, h)
}

func (m *Manager) AfterCommit(h AfterHook) {
	m.afterCommit = append(m.afterCommit, h)
}

// Do runs fn inside a single transaction. A context already carrying a unit
// of work joins it instead of opening a nested transaction.
func (m *Manager) Do(ctx context.Context, fn func(tx *gorm.DB) error, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if current := From(ctx); current != nil && current.tx != nil {
		if o.suppressAudit {
			restore := current.Suppress()
			defer restore()
		}
		return fn(current.tx)
	}

	u := New()
	if o.suppressAudit {
		u.suppressed = true
	}
	ctx = WithUnitOfWork(ctx, u)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u.tx = tx
		defer func() { u.tx = nil }()

		if err := fn(tx); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return fmt.Errorf("unit of work cancelled before commit: %w", err)
		}

		for _, h := range m.beforeCommit {
			if err := h(ctx, tx, u); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.logger.DebugContext(ctx, "unit of work rolled back", "error", err)
		return err
	}

	for _, h := range m.afterCommit {
		h(ctx, u)
	}
	return nil
}
