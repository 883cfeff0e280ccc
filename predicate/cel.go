package predicate

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// maxCallArgs is the highest arity of call(name, ...) registered with CEL.
const maxCallArgs = 4

// CELEvaluator runs CEL expressions. Every variable is declared dyn, so a
// program is type-checked per distinct variable set; declare names with
// WithVariables to check in Compile.
type CELEvaluator struct {
	opts options
}

var _ Evaluator = (*CELEvaluator)(nil)

// NewCELEvaluator builds a cel-go evaluator.
func NewCELEvaluator(opts ...Option) *CELEvaluator {
	return &CELEvaluator{opts: buildOptions(opts)}
}

// Engine implements Evaluator.
func (e *CELEvaluator) Engine() string { return EngineCEL }

// Evaluate implements Evaluator.
func (e *CELEvaluator) Evaluate(env Env, expression string) (any, error) {
	if expression == "" {
		return nil, fail(EngineCEL, OpCompile, "", env.Label, ErrEmptyExpression)
	}
	program, err := e.program(expression, e.variables(env.Vars))
	if err != nil {
		return nil, fail(EngineCEL, OpCompile, expression, env.Label, err)
	}
	out, _, err := program.Eval(env.bindings())
	if err != nil {
		return nil, fail(EngineCEL, OpEvaluate, expression, env.label(), err)
	}
	return out.Value(), nil
}

// Compile implements Evaluator. Without declared variables checking waits
// for the first evaluation.
func (e *CELEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, fail(EngineCEL, OpCompile, "", "", ErrEmptyExpression)
	}
	if len(e.opts.declared) > 0 {
		if _, err := e.program(expression, e.variables(nil)); err != nil {
			return nil, fail(EngineCEL, OpCompile, expression, "", err)
		}
	}
	return celProgram{evaluator: e, expression: expression}, nil
}

// variables returns the sorted union of declared names and vars.
func (e *CELEvaluator) variables(vars map[string]any) []string {
	names := slices.Concat(e.opts.declared, slices.Collect(maps.Keys(vars)))
	names = slices.DeleteFunc(names, func(name string) bool {
		return name == "" || name == "now" || name == "args"
	})
	slices.Sort(names)
	return slices.Compact(names)
}

func (e *CELEvaluator) program(expression string, variables []string) (celgo.Program, error) {
	key := cacheKey(EngineCEL, expression) + "|" + strings.Join(variables, ",")
	return cached(e.opts.cache, key, func() (celgo.Program, error) {
		env, err := celgo.NewEnv(e.envOptions(variables)...)
		if err != nil {
			return nil, err
		}
		ast, issues := env.Compile(expression)
		if issues != nil && issues.Err() != nil {
			return nil, issues.Err()
		}
		return env.Program(ast)
	})
}

func (e *CELEvaluator) envOptions(variables []string) []celgo.EnvOption {
	out := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
	}
	for _, name := range variables {
		out = append(out, celgo.Variable(name, celgo.DynType))
	}
	if len(e.opts.funcs) == 0 {
		return out
	}
	overloads := make([]celgo.FunctionOpt, 0, maxCallArgs+1)
	for arity := 0; arity <= maxCallArgs; arity++ {
		params := []*celgo.Type{celgo.StringType}
		for i := 0; i < arity; i++ {
			params = append(params, celgo.DynType)
		}
		overloads = append(overloads, celgo.Overload(
			fmt.Sprintf("call_string_dyn%d", arity),
			params,
			celgo.DynType,
			celgo.FunctionBinding(e.call),
		))
	}
	return append(out, celgo.Function("call", overloads...))
}

// call binds call(name, ...) to the configured helpers.
func (e *CELEvaluator) call(values ...ref.Val) ref.Val {
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("predicate: call name must be a string")
	}
	args := make([]any, 0, len(values)-1)
	for _, value := range values[1:] {
		args = append(args, value.Value())
	}
	result, err := e.opts.funcs.call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celProgram struct {
	evaluator  *CELEvaluator
	expression string
}

func (p celProgram) Evaluate(env Env) (any, error) {
	return p.evaluator.Evaluate(env, p.expression)
}
