package prefs

// MergeColumns builds a value with exactly one entry per known column id:
// the stored entry when present, else the default. normalize, when set, runs
// on every resulting entry so tightened constraints apply to old values too.
// Ids without a stored or default entry are left out.
func MergeColumns[V any](ids []string, defaults, stored map[string]V, normalize func(id string, value V) V) map[string]V {
	out := make(map[string]V, len(ids))
	for _, id := range ids {
		value, ok := stored[id]
		if !ok {
			value, ok = defaults[id]
		}
		if !ok {
			continue
		}
		if normalize != nil {
			value = normalize(id, value)
		}
		out[id] = value
	}
	return out
}

// MergeOrder keeps the stored order filtered to known ids and appends known
// ids missing from it in their default order.
func MergeOrder(ids, stored []string) []string {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range stored {
		if known[id] && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	for _, id := range ids {
		if !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

// Clamp bounds value to [min, max]. A non-positive bound is ignored.
func Clamp(value, min, max int) int {
	if min > 0 && value < min {
		return min
	}
	if max > 0 && value > max {
		return max
	}
	return value
}
