package grid

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const (
	queryPage = "page"
	querySize = "size"
	querySort = "sort"

	sortSeparator  = "|"
	orderSeparator = "."

	// filterEscape prefixes filter keys that would collide with page, size
	// or sort, and keys already starting with it.
	filterEscape = "~"
)

// FilterParser converts the raw query values of one filter key into the
// filter value stored in the snapshot.
type FilterParser func(values []string) (any, error)

// QueryCodec maps snapshots to a structured query string. With Key "k" the
// encoding is k_page, k_size, k_sort=field.asc|other.desc and one k_<filter>
// entry per filter value. Filters named page, size or sort are written as
// k_~page so they never shadow the paging parameters. Parameters outside the
// prefix are left untouched.
type QueryCodec struct {
	Key      string
	Defaults Snapshot
	Parsers  map[string]FilterParser
}

// Prefix returns the parameter prefix owned by the codec.
func (c QueryCodec) Prefix() string {
	if c.Key == "" {
		return ""
	}
	return c.Key + "_"
}

// Owns reports whether the parameter name belongs to the codec.
func (c QueryCodec) Owns(name string) bool {
	prefix := c.Prefix()
	return strings.HasPrefix(name, prefix) && len(name) > len(prefix)
}

// Encode returns a copy of base with the snapshot written under the codec
// prefix. Previously encoded parameters are replaced; foreign ones survive.
func (c QueryCodec) Encode(base url.Values, snapshot Snapshot) url.Values {
	out := url.Values{}
	for name, values := range base {
		if c.Owns(name) {
			continue
		}
		out[name] = append([]string(nil), values...)
	}

	snapshot = snapshot.Normalize()
	prefix := c.Prefix()
	out.Set(prefix+queryPage, strconv.Itoa(snapshot.Page))
	out.Set(prefix+querySize, strconv.Itoa(snapshot.Size))
	if encoded := EncodeSort(snapshot.Sort); encoded != "" {
		out.Set(prefix+querySort, encoded)
	}

	keys := make([]string, 0, len(snapshot.Filters))
	for key := range snapshot.Filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		values := FilterStrings(snapshot.Filters[key])
		if len(values) == 0 {
			continue
		}
		out[prefix+escapeFilterKey(key)] = values
	}
	return out
}

func reservedQueryKey(key string) bool {
	return key == queryPage || key == querySize || key == querySort
}

func escapeFilterKey(key string) string {
	if reservedQueryKey(key) || strings.HasPrefix(key, filterEscape) {
		return filterEscape + key
	}
	return key
}

// Decode reads the snapshot encoded under the codec prefix. Missing or
// malformed page and size fall back to Defaults.
func (c QueryCodec) Decode(values url.Values) (Snapshot, error) {
	prefix := c.Prefix()
	out := c.Defaults.Clone()
	out.Filters = nil
	if out.Page < 1 {
		out.Page = 1
	}

	if raw := values.Get(prefix + queryPage); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page >= 1 {
			out.Page = page
		}
	}
	if raw := values.Get(prefix + querySize); raw != "" {
		if size, err := strconv.Atoi(raw); err == nil && size >= 1 {
			out.Size = size
		}
	}
	if raw, ok := values[prefix+querySort]; ok && len(raw) > 0 {
		out.Sort = DecodeSort(raw[0])
	}

	for name, raw := range values {
		if !c.Owns(name) {
			continue
		}
		key := strings.TrimPrefix(name, prefix)
		if reservedQueryKey(key) {
			continue
		}
		key = strings.TrimPrefix(key, filterEscape)
		if key == "" {
			continue
		}
		value, err := c.parseFilter(key, raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: filter %q: %v", ErrInvalidQuery, key, err)
		}
		if IsEmptyFilterValue(value) {
			continue
		}
		if out.Filters == nil {
			out.Filters = Filters{}
		}
		out.Filters[key] = value
	}
	return out.Normalize(), nil
}

func (c QueryCodec) parseFilter(key string, raw []string) (any, error) {
	if parser, ok := c.Parsers[key]; ok && parser != nil {
		return parser(raw)
	}
	kept := make([]string, 0, len(raw))
	for _, value := range raw {
		if value != "" {
			kept = append(kept, value)
		}
	}
	switch len(kept) {
	case 0:
		return nil, nil
	case 1:
		return kept[0], nil
	default:
		return kept, nil
	}
}

// EncodeQuery writes snapshot into base under key using the default codec.
func EncodeQuery(base url.Values, key string, snapshot Snapshot) url.Values {
	return QueryCodec{Key: key}.Encode(base, snapshot)
}

// DecodeQuery reads the snapshot stored under key using the default codec.
func DecodeQuery(values url.Values, key string, defaults Snapshot) (Snapshot, error) {
	return QueryCodec{Key: key, Defaults: defaults}.Decode(values)
}

// EncodeSort renders sort rules as field.order joined by "|".
func EncodeSort(rules []SortRule) string {
	parts := make([]string, 0, len(rules))
	for _, rule := range rules {
		if rule.Field == "" {
			continue
		}
		order := rule.Order
		if !order.Valid() {
			order = SortAsc
		}
		parts = append(parts, rule.Field+orderSeparator+string(order))
	}
	return strings.Join(parts, sortSeparator)
}

// DecodeSort parses the EncodeSort format. Entries without a known order
// are dropped. Field names may contain dots; the order follows the last one.
func DecodeSort(raw string) []SortRule {
	if raw == "" {
		return nil
	}
	var rules []SortRule
	for _, part := range strings.Split(raw, sortSeparator) {
		idx := strings.LastIndex(part, orderSeparator)
		if idx <= 0 {
			continue
		}
		order := SortOrder(strings.ToLower(part[idx+1:]))
		if !order.Valid() {
			continue
		}
		rules = append(rules, SortRule{Field: part[:idx], Order: order})
	}
	return rules
}

// FilterStrings renders a filter value as query values. Empty values yield
// nil; false and 0 are rendered.
func FilterStrings(value any) []string {
	if IsEmptyFilterValue(value) {
		return nil
	}
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item != "" {
				out = append(out, item)
			}
		}
		return out
	case bool:
		return []string{strconv.FormatBool(v)}
	case int:
		return []string{strconv.Itoa(v)}
	case int64:
		return []string{strconv.FormatInt(v, 10)}
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}
	case fmt.Stringer:
		return []string{v.String()}
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, FilterStrings(rv.Index(i).Interface())...)
		}
		return out
	}
	return []string{fmt.Sprint(value)}
}

// MultiValue parses a filter as []string even when only one value is present.
func MultiValue(values []string) (any, error) {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value != "" {
			out = append(out, value)
		}
	}
	return out, nil
}

// BoolValue parses a filter as a boolean.
func BoolValue(values []string) (any, error) {
	if len(values) == 0 || values[0] == "" {
		return nil, nil
	}
	return strconv.ParseBool(values[0])
}

// IntValue parses a filter as an int.
func IntValue(values []string) (any, error) {
	if len(values) == 0 || values[0] == "" {
		return nil, nil
	}
	return strconv.Atoi(values[0])
}
