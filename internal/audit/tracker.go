package audit

import (
	"fmt"
	"log/slog"
	"reflect"

	auditmodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/audit"
	"github.com/frahmantamala/sangha-registry/internal/core/uow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	auditLogType   = reflect.TypeOf(auditmodel.AuditLog{})
	apiCallLogType = reflect.TypeOf(auditmodel.APICallLog{})
)

// Tracker is a gorm plugin that journals inserts, updates and deletes into
// the unit of work carried by the statement context. Statements executed
// outside a unit of work are not tracked. Writes without a model schema
// (Table-only or map updates, raw Exec) cannot be snapshotted; inside an
// audited unit they are logged at warn level and otherwise skipped.
type Tracker struct {
	excluded map[string]struct{}
	logger   *slog.Logger
}

func NewTracker(logger *slog.Logger, excludedTables ...string) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{excluded: excludedSet(excludedTables), logger: logger}
}

func excludedSet(tables []string) map[string]struct{} {
	set := map[string]struct{}{
		auditmodel.AuditLog{}.TableName():   {},
		auditmodel.APICallLog{}.TableName(): {},
	}
	for _, t := range tables {
		set[t] = struct{}{}
	}
	return set
}

func (t *Tracker) Name() string {
	return "audit:tracker"
}

func (t *Tracker) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().After("gorm:create").Register("audit:track_create", t.afterCreate); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("audit:snapshot_update", t.beforeUpdate); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("audit:snapshot_delete", t.beforeDelete); err != nil {
		return err
	}
	return db.Callback().Raw().Before("gorm:raw").Register("audit:untracked_raw", t.beforeRaw)
}

// tracked returns the unit of work when the statement should be journaled.
func (t *Tracker) tracked(db *gorm.DB) *uow.UnitOfWork {
	if db.Error != nil {
		return nil
	}
	u := uow.From(db.Statement.Context)
	if u == nil || u.Suppressed() {
		return nil
	}
	if db.Statement.Schema == nil {
		if _, skip := t.excluded[db.Statement.Table]; !skip {
			t.logger.WarnContext(db.Statement.Context, "audit: untracked write", "table", db.Statement.Table)
		}
		return nil
	}
	if isAuditModel(db.Statement.Schema.ModelType) {
		return nil
	}
	if _, skip := t.excluded[db.Statement.Table]; skip {
		return nil
	}
	return u
}

func isAuditModel(rt reflect.Type) bool {
	return rt == auditLogType || rt == apiCallLogType
}

func (t *Tracker) beforeRaw(db *gorm.DB) {
	if db.Error != nil {
		return
	}
	if u := uow.From(db.Statement.Context); u != nil && !u.Suppressed() {
		t.logger.WarnContext(db.Statement.Context, "audit: untracked write", "table", "raw statement")
	}
}

func (t *Tracker) afterCreate(db *gorm.DB) {
	u := t.tracked(db)
	if u == nil {
		return
	}
	for _, entity := range entityValues(db.Statement.ReflectValue) {
		u.Record(uow.Change{
			Kind:   uow.ChangeInsert,
			Table:  db.Statement.Table,
			Schema: db.Statement.Schema,
			Entity: entity,
		})
	}
}

func (t *Tracker) beforeUpdate(db *gorm.DB) {
	t.snapshot(db, uow.ChangeUpdate)
}

func (t *Tracker) beforeDelete(db *gorm.DB) {
	t.snapshot(db, uow.ChangeDelete)
}

func (t *Tracker) snapshot(db *gorm.DB, kind uow.ChangeKind) {
	u := t.tracked(db)
	if u == nil {
		return
	}

	conds := t.targetConditions(db)
	if len(conds) == 0 {
		return
	}

	s := db.Statement.Schema
	rows, err := fetchRows(db, s, db.Statement.Table, conds, db.Statement.Unscoped)
	if err != nil {
		_ = db.AddError(fmt.Errorf("audit: snapshot %s before %s: %w", db.Statement.Table, kind, err))
		return
	}

	for _, row := range rows {
		u.Record(uow.Change{
			Kind:   kind,
			Table:  db.Statement.Table,
			Schema: s,
			Key:    row.key,
			Before: row.values,
		})
	}
}

// targetConditions reproduces the row selection of the pending statement: the
// model's primary keys when set, combined with any explicit WHERE clause.
func (t *Tracker) targetConditions(db *gorm.DB) []clause.Expression {
	var conds []clause.Expression

	if c, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok {
			conds = append(conds, where.Exprs...)
		}
	}

	var keys [][]any
	for _, entity := range entityValues(db.Statement.ReflectValue) {
		if key, ok := primaryKey(db.Statement.Context, db.Statement.Schema, entity); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) > 0 {
		conds = append(conds, keyCondition(db.Statement.Schema, keys))
	}

	return conds
}
