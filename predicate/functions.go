package predicate

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Function is a helper callable from expressions, directly by name in expr
// and through call(name, ...) in every engine.
type Function func(args ...any) (any, error)

// Functions maps helper names to implementations. call(name, ...) matches
// names case-insensitively.
type Functions map[string]Function

// Names returns the helper names, sorted.
func (f Functions) Names() []string {
	names := make([]string, 0, len(f))
	for name, fn := range f {
		if fn != nil && name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// With returns a copy of f extended by other. Helpers in other win.
func (f Functions) With(other Functions) Functions {
	out := make(Functions, len(f)+len(other))
	for _, src := range []Functions{f, other} {
		for name, fn := range src {
			if fn != nil && name != "" {
				out[name] = fn
			}
		}
	}
	return out
}

func (f Functions) call(name string, args ...any) (any, error) {
	fn := f[name]
	if fn == nil {
		for candidate, registered := range f {
			if strings.EqualFold(candidate, name) {
				fn = registered
				break
			}
		}
	}
	if fn == nil {
		return nil, fmt.Errorf("predicate: function %q not registered", name)
	}
	return fn(args...)
}

// Builtins returns the helpers every evaluator built by New carries:
//
//	icontains(s, sub)       case-insensitive substring match
//	between(v, low, high)   inclusive numeric range
//	oneOf(v, a, b, ...)     membership by equality
func Builtins() Functions {
	return Functions{
		"icontains": icontains,
		"between":   between,
		"oneOf":     oneOf,
	}
}

func icontains(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("predicate: icontains expects 2 arguments, got %d", len(args))
	}
	s, sub := fmt.Sprint(args[0]), fmt.Sprint(args[1])
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub)), nil
}

func between(args ...any) (any, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("predicate: between expects 3 arguments, got %d", len(args))
	}
	bounds := make([]float64, 3)
	for i, arg := range args {
		n, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("predicate: between argument %d is not a number: %T", i, arg)
		}
		bounds[i] = n
	}
	return bounds[0] >= bounds[1] && bounds[0] <= bounds[2], nil
}

func oneOf(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, errors.New("predicate: oneOf expects a value")
	}
	needle := args[0]
	for _, candidate := range args[1:] {
		if looselyEqual(needle, candidate) {
			return true, nil
		}
	}
	return false, nil
}

// looselyEqual compares numbers by value so engines that widen integers
// still match.
func looselyEqual(a, b any) bool {
	if x, ok := toFloat(a); ok {
		y, ok := toFloat(b)
		return ok && x == y
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
