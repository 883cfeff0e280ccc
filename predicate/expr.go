package predicate

import (
	"errors"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluator runs expr-lang expressions. Helpers are callable by name as
// well as through call(name, ...). Unknown identifiers evaluate to nil.
type ExprEvaluator struct {
	opts options
}

var _ Evaluator = (*ExprEvaluator)(nil)

// NewExprEvaluator builds an expr-lang evaluator.
func NewExprEvaluator(opts ...Option) *ExprEvaluator {
	return &ExprEvaluator{opts: buildOptions(opts)}
}

// Engine implements Evaluator.
func (e *ExprEvaluator) Engine() string { return EngineExpr }

// Evaluate implements Evaluator.
func (e *ExprEvaluator) Evaluate(env Env, expression string) (any, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, fail(EngineExpr, OpCompile, expression, env.Label, err)
	}
	return program.Evaluate(env)
}

// Compile implements Evaluator.
func (e *ExprEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, fail(EngineExpr, OpCompile, "", "", ErrEmptyExpression)
	}
	program, err := cached(e.opts.cache, cacheKey(EngineExpr, expression), func() (*exprvm.Program, error) {
		return exprlang.Compile(expression, e.compileOptions()...)
	})
	if err != nil {
		return nil, fail(EngineExpr, OpCompile, expression, "", err)
	}
	return exprProgram{program: program, expression: expression}, nil
}

func (e *ExprEvaluator) compileOptions() []exprlang.Option {
	out := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	funcs := e.opts.funcs
	if len(funcs) == 0 {
		return out
	}
	out = append(out, exprlang.Function("call", func(args ...any) (any, error) {
		if len(args) == 0 {
			return nil, errors.New("predicate: call needs a function name")
		}
		name, ok := args[0].(string)
		if !ok {
			return nil, errors.New("predicate: call name must be a string")
		}
		return funcs.call(name, args[1:]...)
	}))
	for _, name := range funcs.Names() {
		if name == "call" {
			continue
		}
		out = append(out, exprlang.Function(name, func(args ...any) (any, error) {
			return funcs.call(name, args...)
		}))
	}
	return out
}

type exprProgram struct {
	program    *exprvm.Program
	expression string
}

func (p exprProgram) Evaluate(env Env) (any, error) {
	result, err := exprlang.Run(p.program, env.bindings())
	if err != nil {
		return nil, fail(EngineExpr, OpEvaluate, p.expression, env.label(), err)
	}
	return result, nil
}
