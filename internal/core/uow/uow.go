package uow

import (
	"context"
	"reflect"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type ChangeKind int

const (
	ChangeInsert ChangeKind = iota + 1
	ChangeUpdate
	ChangeDelete
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is one journal entry recorded while statements execute inside a unit
// of work. Inserts keep a reference to the live entity so that generated keys
// can be read back at commit time; updates and deletes carry the primary key
// and the row as it was before the statement ran.
type Change struct {
	Kind   ChangeKind
	Table  string
	Schema *schema.Schema
	Entity reflect.Value
	Key    []any
	Before map[string]any
}

// UnitOfWork buffers the changes made through one transaction.
type UnitOfWork struct {
	mu         sync.Mutex
	tx         *gorm.DB
	changes    []Change
	suppressed bool
	values     map[string]any
}

func New() *UnitOfWork {
	return &UnitOfWork{values: make(map[string]any)}
}

func (u *UnitOfWork) Record(c Change) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.changes = append(u.changes, c)
}

// Changes returns the journal in the order statements executed.
func (u *UnitOfWork) Changes() []Change {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]Change, len(u.changes))
	copy(out, u.changes)
	return out
}

func (u *UnitOfWork) Suppressed() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.suppressed
}

// Suppress disables change capture and returns a func restoring the previous state.
func (u *UnitOfWork) Suppress() (restore func()) {
	u.mu.Lock()
	prev := u.suppressed
	u.suppressed = true
	u.mu.Unlock()

	return func() {
		u.mu.Lock()
		u.suppressed = prev
		u.mu.Unlock()
	}
}

func (u *UnitOfWork) Set(key string, value any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.values[key] = value
}

func (u *UnitOfWork) Get(key string) (any, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.values[key]
	return v, ok
}

type ctxKey struct{}

func WithUnitOfWork(ctx context.Context, u *UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// From returns the unit of work bound to ctx, or nil.
func From(ctx context.Context) *UnitOfWork {
	if ctx == nil {
		return nil
	}
	u, _ := ctx.Value(ctxKey{}).(*UnitOfWork)
	return u
}
