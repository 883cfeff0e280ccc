package grid

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-grid/layering"
)

// SortOrder is the direction of a sort rule.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Valid reports whether o is a known direction.
func (o SortOrder) Valid() bool {
	return o == SortAsc || o == SortDesc
}

// SortRule orders rows by a single field.
type SortRule struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// Filters holds the active filter values keyed by filter name. Values are
// JSON-like: string, bool, numbers, []string for multi-valued filters.
type Filters map[string]any

// ChangeReason explains why a snapshot was replaced. Adapters use it to
// decide side effects such as page resets and history semantics.
type ChangeReason string

const (
	ReasonInit    ChangeReason = "init"
	ReasonPage    ChangeReason = "page"
	ReasonSize    ChangeReason = "size"
	ReasonSort    ChangeReason = "sort"
	ReasonFilters ChangeReason = "filters"
	ReasonReset   ChangeReason = "reset"
)

// Snapshot is the canonical description of the active query. Snapshots are
// replaced wholesale, never patched in place.
type Snapshot struct {
	Page    int        `json:"page"`
	Size    int        `json:"size"`
	Sort    []SortRule `json:"sort,omitempty"`
	Filters Filters    `json:"filters,omitempty"`
}

// DefaultPageSize is used when a snapshot carries no positive size.
const DefaultPageSize = 20

// NewSnapshot returns a normalized first-page snapshot of the given size.
func NewSnapshot(size int) Snapshot {
	return Snapshot{Page: 1, Size: size}.Normalize()
}

// Clone returns a deep copy so callers can mutate the result freely.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Page: s.Page, Size: s.Size}
	if s.Sort != nil {
		out.Sort = append([]SortRule(nil), s.Sort...)
	}
	if s.Filters != nil {
		out.Filters = layering.Clone(s.Filters)
	}
	return out
}

// Normalize clamps page and size to at least one, drops unknown sort
// directions and compacts empty filter values. false and 0 are kept.
func (s Snapshot) Normalize() Snapshot {
	out := s.Clone()
	if out.Page < 1 {
		out.Page = 1
	}
	if out.Size < 1 {
		out.Size = DefaultPageSize
	}
	if len(out.Sort) > 0 {
		rules := out.Sort[:0]
		for _, rule := range out.Sort {
			rule.Field = strings.TrimSpace(rule.Field)
			if rule.Field == "" {
				continue
			}
			if !rule.Order.Valid() {
				rule.Order = SortAsc
			}
			rules = append(rules, rule)
		}
		out.Sort = rules
		if len(out.Sort) == 0 {
			out.Sort = nil
		}
	}
	out.Filters = CompactFilters(out.Filters)
	return out
}

// Fingerprint returns the canonical serialization of the normalized
// snapshot. Two snapshots with equal fingerprints describe the same query.
func (s Snapshot) Fingerprint() string {
	data, err := json.Marshal(s.Normalize())
	if err != nil {
		return fmt.Sprintf("%+v", s)
	}
	return string(data)
}

// Equal reports whether both snapshots serialize identically.
func (s Snapshot) Equal(other Snapshot) bool {
	return s.Fingerprint() == other.Fingerprint()
}

// FiltersFingerprint serializes only the compacted filters.
func (s Snapshot) FiltersFingerprint() string {
	return FiltersFingerprint(s.Filters)
}

// FiltersFingerprint serializes compacted filters canonically.
func FiltersFingerprint(filters Filters) string {
	compacted := CompactFilters(filters)
	if len(compacted) == 0 {
		return "{}"
	}
	data, err := json.Marshal(compacted)
	if err != nil {
		return fmt.Sprintf("%v", compacted)
	}
	return string(data)
}

// WithPage returns a copy of s pointing at page.
func (s Snapshot) WithPage(page int) Snapshot {
	out := s.Clone()
	out.Page = page
	return out
}

// WithSize returns a copy of s with a new page size.
func (s Snapshot) WithSize(size int) Snapshot {
	out := s.Clone()
	out.Size = size
	return out
}

// WithSort returns a copy of s with the sort rules replaced.
func (s Snapshot) WithSort(rules []SortRule) Snapshot {
	out := s.Clone()
	out.Sort = append([]SortRule(nil), rules...)
	return out
}

// WithFilters returns a copy of s with the filters replaced.
func (s Snapshot) WithFilters(filters Filters) Snapshot {
	out := s.Clone()
	out.Filters = layering.Clone(filters)
	return out
}

// WithFilter returns a copy of s with one filter set. A nil or empty value
// removes the filter.
func (s Snapshot) WithFilter(key string, value any) Snapshot {
	out := s.Clone()
	if out.Filters == nil {
		out.Filters = Filters{}
	}
	if IsEmptyFilterValue(value) {
		delete(out.Filters, key)
	} else {
		out.Filters[key] = value
	}
	return out
}

// CompactFilters drops keys whose value is nil, the empty string or an empty
// slice. It returns nil when nothing remains.
func CompactFilters(filters Filters) Filters {
	if len(filters) == 0 {
		return nil
	}
	out := make(Filters, len(filters))
	for key, value := range filters {
		if key == "" || IsEmptyFilterValue(value) {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// IsEmptyFilterValue reports whether value counts as "no filter". false and
// 0 are real values.
func IsEmptyFilterValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

// FilterValueChanged reports whether key holds a different value in next
// than in prev.
func FilterValueChanged(prev, next Filters, key string) bool {
	a := CompactFilters(Filters{key: prev[key]})
	b := CompactFilters(Filters{key: next[key]})
	return FiltersFingerprint(a) != FiltersFingerprint(b)
}
