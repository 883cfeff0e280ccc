package predicate

import (
	"fmt"
	"time"
)

// Engine names.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// Env carries the inputs of one evaluation.
type Env struct {
	// Vars are exposed as top-level identifiers.
	Vars map[string]any
	Now  *time.Time
	// Args are exposed under "args".
	Args map[string]any
	// Label identifies the caller in errors and logs, e.g. "filter:status".
	Label string
}

func (env Env) withDefaults() Env {
	if env.Now == nil {
		now := time.Now()
		env.Now = &now
	}
	if env.Args == nil {
		env.Args = map[string]any{}
	}
	if env.Vars == nil {
		env.Vars = map[string]any{}
	}
	return env
}

// bindings returns the identifiers an expression sees: now, args and
// every var. Vars named now or args shadow the defaults.
func (env Env) bindings() map[string]any {
	env = env.withDefaults()
	out := make(map[string]any, len(env.Vars)+2)
	out["now"] = *env.Now
	out["args"] = env.Args
	for key, value := range env.Vars {
		out[key] = value
	}
	return out
}

func (env Env) label() string {
	if env.Label != "" {
		return env.Label
	}
	return "unknown"
}

// Evaluator runs expressions.
type Evaluator interface {
	Engine() string
	Evaluate(env Env, expression string) (any, error)
	Compile(expression string) (Program, error)
}

// Program is a compiled, reusable expression.
type Program interface {
	Evaluate(env Env) (any, error)
}

// Match evaluates expression and requires a boolean result.
func Match(evaluator Evaluator, expression string, env Env) (bool, error) {
	if evaluator == nil {
		return false, ErrNoEvaluator
	}
	return AsBool(evaluator.Evaluate(env, expression))
}

// MatchProgram evaluates a compiled program and requires a boolean result.
func MatchProgram(program Program, env Env) (bool, error) {
	if program == nil {
		return false, ErrNoEvaluator
	}
	return AsBool(program.Evaluate(env))
}

// AsBool converts an evaluation result into a boolean.
func AsBool(result any, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	switch v := result.(type) {
	case bool:
		return v, nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("%w: got %T", ErrNotBoolean, result)
	}
}
