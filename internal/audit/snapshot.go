package audit

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// rowSnapshot is a plain field map for one row, keyed by column name.
type rowSnapshot struct {
	key    []any
	values map[string]any
}

func columnFields(s *schema.Schema) []*schema.Field {
	fields := make([]*schema.Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.DBName == "" {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

func fieldNames(s *schema.Schema) []string {
	fields := columnFields(s)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.DBName
	}
	return names
}

func readFields(ctx context.Context, s *schema.Schema, rv reflect.Value) map[string]any {
	rv = reflect.Indirect(rv)
	values := make(map[string]any, len(s.Fields))
	for _, f := range columnFields(s) {
		v, _ := f.ValueOf(ctx, rv)
		values[f.DBName] = v
	}
	return values
}

// primaryKey reads the identity of one entity; ok is false while any key part
// is still zero.
func primaryKey(ctx context.Context, s *schema.Schema, rv reflect.Value) ([]any, bool) {
	rv = reflect.Indirect(rv)
	if !rv.IsValid() || rv.Kind() != reflect.Struct || len(s.PrimaryFields) == 0 {
		return nil, false
	}
	key := make([]any, len(s.PrimaryFields))
	for i, f := range s.PrimaryFields {
		v, zero := f.ValueOf(ctx, rv)
		if zero {
			return nil, false
		}
		key[i] = v
	}
	return key, true
}

func keyString(key []any) string {
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = fmt.Sprint(k)
	}
	return strings.Join(parts, ",")
}

// entityValues expands a statement's reflect value into its struct elements.
func entityValues(rv reflect.Value) []reflect.Value {
	rv = reflect.Indirect(rv)
	if !rv.IsValid() {
		return nil
	}
	switch rv.Kind() {
	case reflect.Struct:
		return []reflect.Value{rv}
	case reflect.Slice, reflect.Array:
		out := make([]reflect.Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := reflect.Indirect(rv.Index(i))
			if elem.IsValid() && elem.Kind() == reflect.Struct {
				out = append(out, elem)
			}
		}
		return out
	}
	return nil
}

func keyCondition(s *schema.Schema, keys [][]any) clause.Expression {
	if len(s.PrimaryFields) == 1 {
		values := make([]any, len(keys))
		for i, k := range keys {
			values[i] = k[0]
		}
		return clause.IN{Column: clause.Column{Name: s.PrimaryFields[0].DBName}, Values: values}
	}

	rows := make([]clause.Expression, len(keys))
	for i, k := range keys {
		eqs := make([]clause.Expression, len(s.PrimaryFields))
		for j, f := range s.PrimaryFields {
			eqs[j] = clause.Eq{Column: clause.Column{Name: f.DBName}, Value: k[j]}
		}
		rows[i] = clause.And(eqs...)
	}
	return clause.Or(rows...)
}

// fetchRows loads the current state of matching rows through db's connection,
// which inside a unit of work is the open transaction.
func fetchRows(db *gorm.DB, s *schema.Schema, table string, conds []clause.Expression, unscoped bool) ([]rowSnapshot, error) {
	ctx := db.Statement.Context
	dest := reflect.New(reflect.SliceOf(reflect.PointerTo(s.ModelType)))

	q := db.Session(&gorm.Session{NewDB: true, SkipHooks: true}).Table(table)
	if unscoped {
		q = q.Unscoped()
	}
	if len(conds) > 0 {
		q = q.Clauses(clause.Where{Exprs: conds})
	}
	if err := q.Find(dest.Interface()).Error; err != nil {
		return nil, err
	}

	slice := dest.Elem()
	rows := make([]rowSnapshot, 0, slice.Len())
	for i := 0; i < slice.Len(); i++ {
		elem := slice.Index(i).Elem()
		key, ok := primaryKey(ctx, s, elem)
		if !ok {
			continue
		}
		rows = append(rows, rowSnapshot{key: key, values: readFields(ctx, s, elem)})
	}
	return rows, nil
}
