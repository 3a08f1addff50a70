package audit

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/frahmantamala/sangha-registry/internal"
	auditmodel "github.com/frahmantamala/sangha-registry/internal/core/datamodel/audit"
	"github.com/frahmantamala/sangha-registry/internal/core/uow"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const writtenKey = "audit.written"

// Metrics receives audit counters. A nil Metrics is valid.
type Metrics interface {
	AuditEntryWritten(operation string)
	APICallLogFailed()
}

type noopMetrics struct{}

func (noopMetrics) AuditEntryWritten(string) {}
func (noopMetrics) APICallLogFailed()        {}

// pendingChange is the net effect on one row across a unit of work's journal.
type pendingChange struct {
	operation string
	table     string
	schema    *schema.Schema
	key       []any
	before    map[string]any
	entity    reflect.Value
}

// Engine turns a unit of work's journal into audit entries right before commit.
type Engine struct {
	sink     *Sink
	excluded map[string]struct{}
	metrics  Metrics
	logger   *slog.Logger
}

func NewEngine(sink *Sink, logger *slog.Logger, metrics Metrics, excludedTables ...string) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Engine{
		sink:     sink,
		excluded: excludedSet(excludedTables),
		metrics:  metrics,
		logger:   logger,
	}
}

// BeforeCommit is registered as a uow.Hook. Failing to capture or persist the
// audit trail fails the transaction.
func (e *Engine) BeforeCommit(ctx context.Context, tx *gorm.DB, u *uow.UnitOfWork) error {
	if u.Suppressed() {
		return nil
	}

	entries, err := e.Capture(ctx, tx, u)
	if err != nil {
		return auditWriteError(err)
	}
	if len(entries) == 0 {
		return nil
	}

	if err := e.sink.Write(ctx, tx, u, entries); err != nil {
		return auditWriteError(err)
	}
	u.Set(writtenKey, entries)
	return nil
}

// AfterCommit is registered as a uow.AfterHook.
func (e *Engine) AfterCommit(ctx context.Context, u *uow.UnitOfWork) {
	v, ok := u.Get(writtenKey)
	if !ok {
		return
	}
	entries, _ := v.([]*auditmodel.AuditLog)
	for _, entry := range entries {
		e.metrics.AuditEntryWritten(entry.Operation)
	}
	e.logger.DebugContext(ctx, "audit entries committed", "count", len(entries))
}

func auditWriteError(err error) error {
	appErr := internal.NewInternalError("failed to record audit trail", err)
	appErr.Code = internal.ErrCodeAuditWriteFailed
	return appErr
}

// Capture folds the journal into net per-row changes and diffs them against
// the rows' current state inside tx.
func (e *Engine) Capture(ctx context.Context, tx *gorm.DB, u *uow.UnitOfWork) ([]*auditmodel.AuditLog, error) {
	changes := e.fold(ctx, u.Changes())
	if len(changes) == 0 {
		return nil, nil
	}

	current, err := e.currentRows(tx, changes)
	if err != nil {
		return nil, err
	}

	rc, hasRequest := internal.CurrentRequest(ctx)

	entries := make([]*auditmodel.AuditLog, 0, len(changes))
	for _, c := range changes {
		id := c.table + "|" + keyString(c.key)
		var entry *auditmodel.AuditLog

		switch c.operation {
		case auditmodel.OperationCreate:
			after, ok := current[id]
			if !ok {
				after = readFields(ctx, c.schema, c.entity)
			}
			entry = &auditmodel.AuditLog{
				NewValues:     datatypes.JSONMap(SerializeMap(after)),
				ChangedFields: fieldNames(c.schema),
			}
		case auditmodel.OperationUpdate:
			after, ok := current[id]
			if !ok {
				e.logger.WarnContext(ctx, "audit: updated row no longer readable", "table", c.table, "record_id", keyString(c.key))
				continue
			}
			oldValues, newValues, changed := diff(c.schema, c.before, after)
			if len(changed) == 0 {
				continue
			}
			entry = &auditmodel.AuditLog{
				OldValues:     datatypes.JSONMap(oldValues),
				NewValues:     datatypes.JSONMap(newValues),
				ChangedFields: changed,
			}
		case auditmodel.OperationDelete:
			entry = &auditmodel.AuditLog{
				OldValues:     datatypes.JSONMap(SerializeMap(c.before)),
				ChangedFields: fieldNames(c.schema),
			}
		}

		entry.EntityTable = c.table
		entry.RecordID = keyString(c.key)
		entry.Operation = c.operation
		if hasRequest {
			stamp(entry, rc)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (e *Engine) fold(ctx context.Context, journal []uow.Change) []*pendingChange {
	var order []string
	state := make(map[string]*pendingChange)

	for _, c := range journal {
		if c.Schema == nil || isAuditModel(c.Schema.ModelType) {
			continue
		}
		if _, skip := e.excluded[c.Table]; skip {
			continue
		}

		key := c.Key
		if c.Kind == uow.ChangeInsert {
			// identity is only resolved now, after the INSERT has run
			k, ok := primaryKey(ctx, c.Schema, c.Entity)
			if !ok {
				e.logger.WarnContext(ctx, "audit: inserted entity has no identity", "table", c.Table)
				continue
			}
			key = k
		}
		id := c.Table + "|" + keyString(key)
		existing, seen := state[id]

		switch c.Kind {
		case uow.ChangeInsert:
			if !seen {
				order = append(order, id)
			}
			state[id] = &pendingChange{operation: auditmodel.OperationCreate, table: c.Table, schema: c.Schema, key: key, entity: c.Entity}
		case uow.ChangeUpdate:
			if seen {
				continue
			}
			order = append(order, id)
			state[id] = &pendingChange{operation: auditmodel.OperationUpdate, table: c.Table, schema: c.Schema, key: key, before: c.Before}
		case uow.ChangeDelete:
			if !seen {
				order = append(order, id)
				state[id] = &pendingChange{operation: auditmodel.OperationDelete, table: c.Table, schema: c.Schema, key: key, before: c.Before}
				continue
			}
			switch existing.operation {
			case auditmodel.OperationCreate:
				delete(state, id)
			case auditmodel.OperationUpdate:
				existing.operation = auditmodel.OperationDelete
			}
		}
	}

	out := make([]*pendingChange, 0, len(state))
	for _, id := range order {
		if c, ok := state[id]; ok {
			out = append(out, c)
			delete(state, id)
		}
	}
	return out
}

// currentRows re-reads every created or updated row, one query per table.
func (e *Engine) currentRows(tx *gorm.DB, changes []*pendingChange) (map[string]map[string]any, error) {
	type tableKeys struct {
		schema *schema.Schema
		keys   [][]any
	}
	byTable := make(map[string]*tableKeys)
	var tables []string
	for _, c := range changes {
		if c.operation == auditmodel.OperationDelete {
			continue
		}
		tk, ok := byTable[c.table]
		if !ok {
			tk = &tableKeys{schema: c.schema}
			byTable[c.table] = tk
			tables = append(tables, c.table)
		}
		tk.keys = append(tk.keys, c.key)
	}

	current := make(map[string]map[string]any)
	for _, table := range tables {
		tk := byTable[table]
		rows, err := fetchRows(tx, tk.schema, table, []clause.Expression{keyCondition(tk.schema, tk.keys)}, true)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			current[table+"|"+keyString(row.key)] = row.values
		}
	}
	return current, nil
}

// diff compares serialized values field by field. Primary keys and columns the
// ORM stamps on every update are bookkeeping, not changes.
func diff(s *schema.Schema, before, after map[string]any) (map[string]any, map[string]any, []string) {
	oldValues := make(map[string]any)
	newValues := make(map[string]any)
	var changed []string

	for _, f := range columnFields(s) {
		if f.PrimaryKey || f.AutoUpdateTime > 0 {
			continue
		}
		prev := SerializeValue(before[f.DBName])
		next := SerializeValue(after[f.DBName])
		if reflect.DeepEqual(prev, next) {
			continue
		}
		oldValues[f.DBName] = prev
		newValues[f.DBName] = next
		changed = append(changed, f.DBName)
	}
	return oldValues, newValues, changed
}

func stamp(entry *auditmodel.AuditLog, rc internal.RequestContext) {
	entry.UserID = rc.UserID
	entry.SessionID = rc.SessionID
	entry.IPAddress = optional(rc.IPAddress)
	entry.UserAgent = optional(rc.UserAgent)
	entry.TransactionID = optional(rc.TransactionID)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
