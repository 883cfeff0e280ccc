package predicate

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEvaluator is returned when no evaluator is configured.
	ErrNoEvaluator = errors.New("predicate: evaluator not configured")
	// ErrEmptyExpression is returned for blank expressions.
	ErrEmptyExpression = errors.New("predicate: expression must not be empty")
	// ErrNotBoolean is returned by Match when a rule yields a non-boolean.
	ErrNotBoolean = errors.New("predicate: result is not a boolean")
	// ErrUnknownEngine is returned by New for unsupported engine names.
	ErrUnknownEngine = errors.New("predicate: unknown engine")
	// ErrEngineUnavailable is returned when an engine is not compiled in.
	ErrEngineUnavailable = errors.New("predicate: engine unavailable in this build")
)

// Evaluation phases reported in EvaluationError.Op.
const (
	OpCompile  = "compile"
	OpEvaluate = "evaluate"
)

// EvaluationError reports a failed compile or evaluation together with the
// expression and the caller label, e.g. "filter:status".
type EvaluationError struct {
	Engine string
	Op     string
	Expr   string
	Label  string
	Err    error
}

func (e *EvaluationError) Error() string {
	msg := fmt.Sprintf("predicate: %s %s %q", e.Engine, e.Op, e.Expr)
	if e.Label != "" {
		msg += " (" + e.Label + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// fail wraps err as an EvaluationError. An EvaluationError already in the
// chain is returned with its blank fields filled in.
func fail(engine, op, expression, label string, err error) error {
	var existing *EvaluationError
	if errors.As(err, &existing) {
		fill(&existing.Engine, engine)
		fill(&existing.Op, op)
		fill(&existing.Expr, expression)
		fill(&existing.Label, label)
		return err
	}
	return &EvaluationError{Engine: engine, Op: op, Expr: expression, Label: label, Err: err}
}

func fill(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}
