package predicate

import "time"

// LogEvent describes an evaluation attempt for logging.
type LogEvent struct {
	Engine   string
	Expr     string
	Label    string
	Duration time.Duration
	Err      error
}

// Logger records evaluator events.
type Logger interface {
	LogEvaluation(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// LogEvaluation implements Logger.
func (f LoggerFunc) LogEvaluation(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) LogEvaluation(LogEvent) {}

// WithLogger wraps evaluator so every Evaluate call is timed and logged.
func WithLogger(evaluator Evaluator, logger Logger) Evaluator {
	if evaluator == nil {
		return nil
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &loggedEvaluator{next: evaluator, logger: logger}
}

type loggedEvaluator struct {
	next   Evaluator
	logger Logger
}

func (l *loggedEvaluator) Engine() string {
	return l.next.Engine()
}

func (l *loggedEvaluator) Evaluate(env Env, expression string) (any, error) {
	start := time.Now()
	value, err := l.next.Evaluate(env, expression)
	l.logger.LogEvaluation(LogEvent{
		Engine:   l.next.Engine(),
		Expr:     expression,
		Label:    env.label(),
		Duration: time.Since(start),
		Err:      err,
	})
	return value, err
}

func (l *loggedEvaluator) Compile(expression string) (Program, error) {
	program, err := l.next.Compile(expression)
	if err != nil {
		return nil, err
	}
	return &loggedProgram{next: program, logger: l.logger, engine: l.next.Engine(), expression: expression}, nil
}

type loggedProgram struct {
	next       Program
	logger     Logger
	engine     string
	expression string
}

func (p *loggedProgram) Evaluate(env Env) (any, error) {
	start := time.Now()
	value, err := p.next.Evaluate(env)
	p.logger.LogEvaluation(LogEvent{
		Engine:   p.engine,
		Expr:     p.expression,
		Label:    env.label(),
		Duration: time.Since(start),
		Err:      err,
	})
	return value, err
}
