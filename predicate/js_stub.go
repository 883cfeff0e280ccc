//go:build !js_eval

package predicate

// NewJSEvaluator returns nil unless built with the js_eval tag.
func NewJSEvaluator(...Option) Evaluator { return nil }

func jsAvailable() bool { return false }
