package predicate

import (
	"fmt"
	"strings"
)

// Config selects and configures an evaluator by engine name.
type Config struct {
	Engine string
	Cache  ProgramCache
	// Functions extend Builtins; a helper here replaces a builtin of the
	// same name.
	Functions Functions
	Logger    Logger
}

// New builds the evaluator named by cfg.Engine. An empty engine selects expr.
func New(cfg Config) (Evaluator, error) {
	opts := []Option{WithCache(cfg.Cache), WithFunctions(Builtins().With(cfg.Functions))}

	var evaluator Evaluator
	switch engine := strings.ToLower(strings.TrimSpace(cfg.Engine)); engine {
	case "", EngineExpr:
		evaluator = NewExprEvaluator(opts...)
	case EngineCEL:
		evaluator = NewCELEvaluator(opts...)
	case EngineJS:
		if !jsAvailable() {
			return nil, fmt.Errorf("%w: %s (build with -tags js_eval)", ErrEngineUnavailable, engine)
		}
		evaluator = NewJSEvaluator(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
	if cfg.Logger != nil {
		evaluator = WithLogger(evaluator, cfg.Logger)
	}
	return evaluator, nil
}
