package predicate

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var engines = []struct {
	name string
	new  func(opts ...Option) Evaluator
}{
	{EngineExpr, func(opts ...Option) Evaluator { return NewExprEvaluator(opts...) }},
	{EngineCEL, func(opts ...Option) Evaluator { return NewCELEvaluator(opts...) }},
	{EngineJS, NewJSEvaluator},
}

func forEachEngine(t *testing.T, opts []Option, run func(t *testing.T, evaluator Evaluator)) {
	t.Helper()
	for _, engine := range engines {
		t.Run(engine.name, func(t *testing.T) {
			evaluator := engine.new(opts...)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", engine.name)
			}
			run(t, evaluator)
		})
	}
}

func TestEvaluatorsMatchRowVariables(t *testing.T) {
	row := map[string]any{"status": "open", "owner": "ada", "amount": 250}
	cases := []struct {
		expression string
		want       bool
	}{
		{`status == "open" && owner == "ada"`, true},
		{`status == "paid"`, false},
		{`amount >= 200`, true},
	}
	forEachEngine(t, nil, func(t *testing.T, evaluator Evaluator) {
		for _, tc := range cases {
			got, err := Match(evaluator, tc.expression, Env{Vars: row, Label: "filter:status"})
			if err != nil {
				t.Fatalf("%s: %v", tc.expression, err)
			}
			if got != tc.want {
				t.Fatalf("%s: expected %v, got %v", tc.expression, tc.want, got)
			}
		}
	})
}

func TestEvaluatorsCallHelpers(t *testing.T) {
	upper := Functions{"upper": func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, errors.New("upper expects one argument")
		}
		return strings.ToUpper(args[0].(string)), nil
	}}
	opts := []Option{WithCache(NewLRUCache(8)), WithFunctions(Builtins()), WithFunctions(upper)}
	vars := map[string]any{"name": "ada", "status": "Refunded", "amount": 120}

	forEachEngine(t, opts, func(t *testing.T, evaluator Evaluator) {
		for _, expression := range []string{
			`call("upper", name) == "ADA"`,
			`call("ICONTAINS", status, "fund")`,
			`call("between", amount, 100, 150)`,
			`call("oneOf", status, "Open", "Refunded")`,
		} {
			ok, err := Match(evaluator, expression, Env{Vars: vars})
			if err != nil {
				t.Fatalf("%s: %v", expression, err)
			}
			if !ok {
				t.Fatalf("%s: expected match", expression)
			}
		}
		if _, err := evaluator.Evaluate(Env{Vars: vars}, `call("missing", name)`); err == nil {
			t.Fatalf("expected unknown helper error")
		}
	})
}

func TestExprCallsHelpersByName(t *testing.T) {
	evaluator := NewExprEvaluator(WithFunctions(Builtins()))
	ok, err := Match(evaluator, `between(amount, 10, 20) && oneOf(status, "open")`, Env{Vars: map[string]any{"amount": 15.5, "status": "open"}})
	if err != nil || !ok {
		t.Fatalf("expected match, got %v %v", ok, err)
	}
	if _, err := Match(evaluator, `between(amount, 1)`, Env{Vars: map[string]any{"amount": 1}}); err == nil {
		t.Fatalf("expected arity error")
	}
}

func TestCompiledProgramIsReusable(t *testing.T) {
	forEachEngine(t, nil, func(t *testing.T, evaluator Evaluator) {
		program, err := evaluator.Compile(`count > 2`)
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		for _, tc := range []struct {
			count int
			want  bool
		}{{1, false}, {3, true}} {
			got, err := MatchProgram(program, Env{Vars: map[string]any{"count": tc.count}})
			if err != nil {
				t.Fatalf("count=%d: %v", tc.count, err)
			}
			if got != tc.want {
				t.Fatalf("count=%d: expected %v, got %v", tc.count, tc.want, got)
			}
		}
	})
}

func TestEnvExposesNowAndArgs(t *testing.T) {
	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	ok, err := Match(NewExprEvaluator(), `now.Year() == 2026 && args.limit == 3`, Env{Now: &at, Args: map[string]any{"limit": 3}})
	if err != nil || !ok {
		t.Fatalf("expected now and args bound, got %v %v", ok, err)
	}
}

func TestEvaluationErrors(t *testing.T) {
	if _, err := Match(NewExprEvaluator(), `1 + 2`, Env{}); !errors.Is(err, ErrNotBoolean) {
		t.Fatalf("expected ErrNotBoolean, got %v", err)
	}
	if _, err := Match(nil, `true`, Env{}); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}

	forEachEngine(t, nil, func(t *testing.T, evaluator Evaluator) {
		if _, err := evaluator.Evaluate(Env{}, ""); !errors.Is(err, ErrEmptyExpression) {
			t.Fatalf("expected ErrEmptyExpression, got %v", err)
		}
		_, err := evaluator.Evaluate(Env{Label: "drag"}, `status ==`)
		var evalErr *EvaluationError
		if !errors.As(err, &evalErr) {
			t.Fatalf("expected EvaluationError, got %T (%v)", err, err)
		}
		if evalErr.Engine != evaluator.Engine() || evalErr.Op != OpCompile || evalErr.Expr != "status ==" || evalErr.Label != "drag" {
			t.Fatalf("unexpected error fields %+v", evalErr)
		}
	})
}

func TestCELDeclaredVariablesCheckOnCompile(t *testing.T) {
	evaluator := NewCELEvaluator(WithVariables("rank"))
	if _, err := evaluator.Compile(`rank > 1`); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := evaluator.Compile(`missing > 1`); err == nil {
		t.Fatalf("expected undeclared reference error")
	}
}

func TestLRUCacheStoresCompiledPrograms(t *testing.T) {
	cache := NewLRUCache(2)
	evaluator := NewExprEvaluator(WithCache(cache))
	for _, expression := range []string{`a == 1`, `a == 1`, `a == 2`, `a == 3`} {
		if _, err := evaluator.Evaluate(Env{Vars: map[string]any{"a": 1}}, expression); err != nil {
			t.Fatalf("evaluate %q: %v", expression, err)
		}
	}
	if cache.Len() != 2 {
		t.Fatalf("expected cache bounded to 2 entries, got %d", cache.Len())
	}
	if _, ok := cache.Get(cacheKey(EngineExpr, `a == 1`)); ok {
		t.Fatalf("expected oldest program evicted")
	}
}

func TestNewSelectsEngine(t *testing.T) {
	evaluator, err := New(Config{Engine: "CEL"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if evaluator.Engine() != EngineCEL {
		t.Fatalf("expected cel engine, got %s", evaluator.Engine())
	}
	if ok, err := Match(evaluator, `call("between", size, 1, 5)`, Env{Vars: map[string]any{"size": 2}}); err != nil || !ok {
		t.Fatalf("expected builtins wired, got %v %v", ok, err)
	}
	if _, err := New(Config{Engine: "lua"}); !errors.Is(err, ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
	if !jsAvailable() {
		if _, err := New(Config{Engine: "js"}); !errors.Is(err, ErrEngineUnavailable) {
			t.Fatalf("expected ErrEngineUnavailable, got %v", err)
		}
	}
}

func TestWithLoggerRecordsEvaluations(t *testing.T) {
	var events []LogEvent
	evaluator := WithLogger(NewExprEvaluator(), LoggerFunc(func(event LogEvent) {
		events = append(events, event)
	}))
	if _, err := evaluator.Evaluate(Env{Label: "filter:status"}, `true`); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(events) != 1 || events[0].Engine != EngineExpr || events[0].Label != "filter:status" {
		t.Fatalf("unexpected events %+v", events)
	}
}
