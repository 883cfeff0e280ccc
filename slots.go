package grid

// Slots carries per-feature auxiliary data on the composed table. Every entry
// is owned by one feature and read through a typed Key.
type Slots map[string]any

// Key is a typed handle to one slot.
type Key[V any] struct {
	name string
}

// NewKey declares a slot key. Keys with the same name address the same slot.
func NewKey[V any](name string) Key[V] {
	return Key[V]{name: name}
}

// Name returns the slot name.
func (k Key[V]) Name() string {
	return k.name
}

// Get reads the slot value. ok is false when the slot is empty or holds a
// value of another type.
func (k Key[V]) Get(slots Slots) (V, bool) {
	var zero V
	if slots == nil {
		return zero, false
	}
	raw, ok := slots[k.name]
	if !ok {
		return zero, false
	}
	value, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return value, true
}

// Must reads the slot value or returns the zero value.
func (k Key[V]) Must(slots Slots) V {
	value, _ := k.Get(slots)
	return value
}

// Set returns a copy of slots with the slot assigned.
func (k Key[V]) Set(slots Slots, value V) Slots {
	out := make(Slots, len(slots)+1)
	for name, v := range slots {
		out[name] = v
	}
	out[k.name] = value
	return out
}

// Patch returns a single-entry Slots for use in a PatchMeta result.
func (k Key[V]) Patch(value V) Slots {
	return Slots{k.name: value}
}
