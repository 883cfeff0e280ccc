package datasource

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Accessor reads a named field of a row.
type Accessor[T any] func(row T, field string) (any, bool)

// FieldAccessor resolves fields by name on structs (field name or json tag,
// case-insensitive) and on map[string]any rows. Pointers are followed.
func FieldAccessor[T any]() Accessor[T] {
	return func(row T, field string) (any, bool) {
		return lookupField(reflect.ValueOf(row), field)
	}
}

func lookupField(v reflect.Value, field string) (any, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, false
	}
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		value := v.MapIndex(reflect.ValueOf(field).Convert(v.Type().Key()))
		if !value.IsValid() {
			return nil, false
		}
		return value.Interface(), true
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			if !sf.IsExported() {
				continue
			}
			name := sf.Name
			if tag := strings.Split(sf.Tag.Get("json"), ",")[0]; tag != "" && tag != "-" {
				if strings.EqualFold(tag, field) {
					return v.Field(i).Interface(), true
				}
			}
			if strings.EqualFold(name, field) {
				return v.Field(i).Interface(), true
			}
		}
	}
	return nil, false
}

// compareValues orders two field values. Numbers compare numerically,
// times chronologically, bools false first, everything else as
// case-insensitive strings. nil sorts first.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(strings.ToLower(fmt.Sprint(a)), strings.ToLower(fmt.Sprint(b)))
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// matchesValue is the default filter: a slice filter matches any of its
// values, a scalar matches by case-insensitive string equality.
func matchesValue(field, filter any) bool {
	rv := reflect.ValueOf(filter)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < rv.Len(); i++ {
			if matchesValue(field, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	return strings.EqualFold(fmt.Sprint(field), fmt.Sprint(filter))
}
