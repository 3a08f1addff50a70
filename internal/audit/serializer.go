package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
	stringerTyp = reflect.TypeOf((*fmt.Stringer)(nil)).Elem()
)

// SerializeValue converts a field value into a JSON-portable form: times become
// RFC 3339 strings in UTC, decimals become strings, named scalar types collapse
// to their underlying kind and composite values round-trip through JSON.
// Anything that cannot be represented falls back to its fmt string form.
func SerializeValue(v any) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = fmt.Sprint(v)
		}
	}()
	return serialize(reflect.ValueOf(v))
}

// SerializeMap applies SerializeValue to every entry.
func SerializeMap(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = SerializeValue(v)
	}
	return out
}

func serialize(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Type() {
	case timeType:
		return rv.Interface().(time.Time).UTC().Format(time.RFC3339Nano)
	case decimalType:
		return rv.Interface().(decimal.Decimal).String()
	}

	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Type().Implements(stringerTyp) {
			return rv.Interface().(fmt.Stringer).String()
		}
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprint(f)
		}
		return f
	case reflect.String:
		return rv.String()
	case reflect.Map:
		return roundTrip(rv.Interface())
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return string(rv.Bytes())
		}
		return roundTrip(rv.Interface())
	}

	if !rv.Type().Implements(valuerType) && rv.CanAddr() && rv.Addr().Type().Implements(valuerType) {
		rv = rv.Addr()
	}
	if rv.Type().Implements(valuerType) {
		val, err := rv.Interface().(driver.Valuer).Value()
		if err != nil {
			return fmt.Sprint(rv.Interface())
		}
		return serialize(reflect.ValueOf(val))
	}

	if rv.Type().Implements(stringerTyp) {
		return rv.Interface().(fmt.Stringer).String()
	}

	if rv.Kind() == reflect.Struct || rv.Kind() == reflect.Array {
		return roundTrip(rv.Interface())
	}

	return fmt.Sprint(rv.Interface())
}

func roundTrip(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return string(b)
	}
	return out
}
