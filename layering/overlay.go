package layering

import (
	"reflect"
	"slices"
)

// Clone returns a deep copy of value. Functions and channels are shared.
func Clone[T any](value T) T {
	rv := reflect.ValueOf(&value).Elem()
	cloned := cloneValue(rv)
	if !cloned.IsValid() {
		var zero T
		return zero
	}
	out := reflect.New(rv.Type()).Elem()
	out.Set(cloned)
	return out.Interface().(T)
}

// Overlay applies patch on top of base. For structs every exported field of
// patch that is not the zero value replaces the matching field of base. Map
// fields whose names are listed in deep merge one level: patch keys replace
// base keys, other base keys survive. Non-struct values are replaced when
// patch is non-zero.
//
// Values are assigned, not cloned: row slices and callbacks keep identity.
func Overlay[T any](base, patch T, deep ...string) T {
	bv := reflect.ValueOf(&base).Elem()
	pv := reflect.ValueOf(&patch).Elem()
	if pv.Kind() != reflect.Struct {
		if pv.IsZero() {
			return base
		}
		if pv.Kind() == reflect.Map {
			return mergeMapValues(bv, pv).Interface().(T)
		}
		return patch
	}

	out := reflect.New(bv.Type()).Elem()
	out.Set(bv)
	for i := 0; i < pv.NumField(); i++ {
		field := out.Field(i)
		if !field.CanSet() {
			continue
		}
		next := pv.Field(i)
		if next.IsZero() {
			continue
		}
		name := pv.Type().Field(i).Name
		if next.Kind() == reflect.Map && slices.Contains(deep, name) {
			field.Set(mergeMapValues(field, next))
			continue
		}
		field.Set(next)
	}
	return out.Interface().(T)
}

// MergeMaps returns a new map with the entries of base overridden by the
// entries of patch. Values are not merged recursively.
func MergeMaps[M ~map[K]V, K comparable, V any](base, patch M) M {
	if base == nil && patch == nil {
		return nil
	}
	out := make(M, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func mergeMapValues(base, patch reflect.Value) reflect.Value {
	out := reflect.MakeMapWithSize(patch.Type(), base.Len()+patch.Len())
	if base.IsValid() && !base.IsNil() {
		iter := base.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
	}
	iter := patch.MapRange()
	for iter.Next() {
		out.SetMapIndex(iter.Key(), iter.Value())
	}
	return out
}
