//go:build js_eval

package predicate

import (
	"github.com/dop251/goja"
)

// JSEvaluator runs JavaScript expressions on goja. Each evaluation gets a
// fresh runtime; compiled programs are shared.
type JSEvaluator struct {
	opts options
}

var _ Evaluator = (*JSEvaluator)(nil)

// NewJSEvaluator builds a goja evaluator.
func NewJSEvaluator(opts ...Option) Evaluator {
	return &JSEvaluator{opts: buildOptions(opts)}
}

func jsAvailable() bool { return true }

// Engine implements Evaluator.
func (e *JSEvaluator) Engine() string { return EngineJS }

// Evaluate implements Evaluator.
func (e *JSEvaluator) Evaluate(env Env, expression string) (any, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, fail(EngineJS, OpCompile, expression, env.Label, err)
	}
	return program.Evaluate(env)
}

// Compile implements Evaluator. The expression is wrapped in a function so
// statements such as "return" are not required.
func (e *JSEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, fail(EngineJS, OpCompile, "", "", ErrEmptyExpression)
	}
	program, err := cached(e.opts.cache, cacheKey(EngineJS, expression), func() (*goja.Program, error) {
		return goja.Compile("", "(function(){ return ("+expression+"); })()", false)
	})
	if err != nil {
		return nil, fail(EngineJS, OpCompile, expression, "", err)
	}
	return jsProgram{evaluator: e, program: program, expression: expression}, nil
}

type jsProgram struct {
	evaluator  *JSEvaluator
	program    *goja.Program
	expression string
}

func (p jsProgram) Evaluate(env Env) (any, error) {
	vm := goja.New()
	for name, value := range env.bindings() {
		if err := vm.Set(name, value); err != nil {
			return nil, fail(EngineJS, OpEvaluate, p.expression, env.label(), err)
		}
	}
	if funcs := p.evaluator.opts.funcs; len(funcs) > 0 {
		call := func(name string, args ...any) (any, error) {
			return funcs.call(name, args...)
		}
		if err := vm.Set("call", call); err != nil {
			return nil, fail(EngineJS, OpEvaluate, p.expression, env.label(), err)
		}
	}
	value, err := vm.RunProgram(p.program)
	if err != nil {
		return nil, fail(EngineJS, OpEvaluate, p.expression, env.label(), err)
	}
	return value.Export(), nil
}
