// Package layering merges and clones plain Go values with reflection. It backs
// the composed table overlay, snapshot filter copies and the layered settings
// overrides.
package layering

import "reflect"

// MergeLayers folds layers ordered strongest first. Nil pointers, nil maps,
// nil slices and nil interfaces fall through to weaker layers; maps merge per
// key, recursively; every other value of the strongest layer that has one
// wins. The result shares nothing with the inputs.
func MergeLayers[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}
	typ := reflect.TypeOf(&zero).Elem()

	acc := cloneValue(reflect.ValueOf(&layers[len(layers)-1]).Elem())
	for i := len(layers) - 2; i >= 0; i-- {
		acc = mergeValue(reflect.ValueOf(&layers[i]).Elem(), acc)
	}
	if !acc.IsValid() {
		return zero
	}
	out := reflect.New(typ).Elem()
	out.Set(acc.Convert(typ))
	return out.Interface().(T)
}

func mergeValue(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return cloneValue(weak)
	}
	switch strong.Kind() {
	case reflect.Pointer, reflect.Interface:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		return mergeIndirect(strong, weak)
	case reflect.Map:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		return mergeMap(strong, weak)
	case reflect.Slice:
		if strong.IsNil() {
			return cloneValue(weak)
		}
		return cloneValue(strong)
	case reflect.Struct:
		return mergeStruct(strong, weak)
	default:
		return cloneValue(strong)
	}
}

// mergeIndirect merges what a non-nil pointer or interface holds.
func mergeIndirect(strong, weak reflect.Value) reflect.Value {
	var inner reflect.Value
	if weak.IsValid() && weak.Kind() == strong.Kind() && !weak.IsNil() {
		inner = weak.Elem()
	}
	if strong.Kind() == reflect.Interface {
		// Dynamic types may differ between layers; only merge like with like.
		if inner.IsValid() && inner.Type() != strong.Elem().Type() {
			inner = reflect.Value{}
		}
		return mergeValue(strong.Elem(), inner).Convert(strong.Type())
	}
	out := reflect.New(strong.Type().Elem())
	out.Elem().Set(mergeValue(strong.Elem(), inner))
	return out
}

func mergeStruct(strong, weak reflect.Value) reflect.Value {
	out := reflect.New(strong.Type()).Elem()
	out.Set(strong)
	if !weak.IsValid() || weak.Type() != strong.Type() {
		weak = reflect.Value{}
	}
	for i := 0; i < strong.NumField(); i++ {
		field := out.Field(i)
		if !field.CanSet() {
			continue
		}
		var other reflect.Value
		if weak.IsValid() {
			other = weak.Field(i)
		}
		field.Set(mergeValue(strong.Field(i), other))
	}
	return out
}

func mergeMap(strong, weak reflect.Value) reflect.Value {
	out := reflect.MakeMapWithSize(strong.Type(), strong.Len())
	if weak.IsValid() && weak.Kind() == reflect.Map && !weak.IsNil() {
		for iter := weak.MapRange(); iter.Next(); {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
	}
	for iter := strong.MapRange(); iter.Next(); {
		key, value := iter.Key(), iter.Value()
		if existing := out.MapIndex(key); existing.IsValid() {
			out.SetMapIndex(key, mergeValue(value, existing))
			continue
		}
		out.SetMapIndex(key, cloneValue(value))
	}
	return out
}

// cloneValue deep-copies maps, slices, pointers and exported struct fields.
// Unexported fields are copied shallowly with their struct.
func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		return cloneValue(v.Elem()).Convert(v.Type())
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		for iter := v.MapRange(); iter.Next(); {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if field := out.Field(i); field.CanSet() {
				field.Set(cloneValue(v.Field(i)))
			}
		}
		return out
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
