// Package predicate evaluates boolean rules written in expr, CEL or (with the
// js_eval build tag) JavaScript. The grid uses it for declarative row filters
// in the in-memory data source and for drag-and-drop guards.
//
// Every evaluator receives an Env whose Vars become top-level identifiers,
// next to now and args:
//
//	eval, _ := predicate.New(predicate.Config{Engine: predicate.EngineExpr})
//	ok, err := predicate.Match(eval, `status == "open" && between(amount, 100, 500)`, predicate.Env{Vars: row})
package predicate
