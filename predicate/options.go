package predicate

// Option configures any of the evaluators.
type Option func(*options)

type options struct {
	cache    ProgramCache
	funcs    Functions
	declared []string
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithCache stores compiled programs in cache.
func WithCache(cache ProgramCache) Option {
	return func(o *options) { o.cache = cache }
}

// WithFunctions exposes helper functions to expressions. Repeated calls
// merge, later helpers winning.
func WithFunctions(funcs Functions) Option {
	return func(o *options) { o.funcs = o.funcs.With(funcs) }
}

// WithVariables declares variable names ahead of evaluation. CEL uses them
// to type-check in Compile; the other engines resolve names at run time.
func WithVariables(names ...string) Option {
	return func(o *options) { o.declared = append(o.declared, names...) }
}
