package grid

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	componentEngine = "grid"
	noticeSource    = "query"
	codeFetchFailed = "fetch_failed"
)

// Config wires an Engine.
type Config[T any] struct {
	// Initial is the snapshot ResetAll returns to. When zero it is taken
	// from the adapter at construction.
	Initial Snapshot
	// Adapter holds the active snapshot. Defaults to a MemoryAdapter seeded
	// with Initial.
	Adapter  StateAdapter
	Source   DataSource[T]
	RowID    func(T) string
	Columns  []Column
	Features []Feature[T]
}

// Engine composes the state adapter, the data source and the features into
// one Table. All methods are safe for concurrent use.
type Engine[T any] struct {
	cfg     Config[T]
	opts    engineConfig
	initial Snapshot
	notices Notices
	tasks   tracker
	tables  subscribers[Table[T]]

	mu          sync.Mutex
	ctx         context.Context
	started     bool
	closed      bool
	snapshot    Snapshot
	queried     string
	generation  uint64
	status      Status
	result      DataResult[T]
	hasData     bool
	fetchNotice string
	table       Table[T]
	resets      []func()
	composing   bool
	dirty       bool
	unsubscribe func()
}

// New validates cfg and builds an engine. The table is composed once
// immediately; queries start with Start.
func New[T any](cfg Config[T], opts ...Option) (*Engine[T], error) {
	if cfg.Source == nil {
		return nil, ErrNoDataSource
	}
	if cfg.RowID == nil {
		return nil, ErrNoRowID
	}
	initial := cfg.Initial
	if cfg.Adapter == nil {
		cfg.Adapter = NewMemoryAdapter(initial)
	}
	if initial.Page == 0 && initial.Size == 0 {
		initial = cfg.Adapter.Snapshot()
	}

	e := &Engine[T]{
		cfg:      cfg,
		opts:     applyOptions(opts),
		initial:  initial.Normalize(),
		ctx:      context.Background(),
		snapshot: cfg.Adapter.Snapshot(),
		status:   StatusIdle,
	}
	for _, feature := range cfg.Features {
		if attacher, ok := feature.(Attacher); ok {
			attacher.Attach(e.hostFor(feature.Name()))
		}
	}
	e.recompose()
	return e, nil
}

// Start subscribes to the adapter, runs feature initializers and issues the
// first query. ctx bounds every background operation of the engine.
func (e *Engine[T]) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.ctx = ctx
	e.snapshot = e.cfg.Adapter.Snapshot()
	e.mu.Unlock()

	for _, feature := range e.cfg.Features {
		initializer, ok := feature.(Initializer)
		if !ok || !feature.Enabled() {
			continue
		}
		name := feature.Name()
		e.tasks.Go(func() {
			start := e.opts.now()
			err := initializer.Init(ctx)
			e.opts.metrics.Observe(ctx, name+".init", err == nil, e.opts.now().Sub(start))
			if err != nil {
				e.opts.logger.Log(LogEvent{Component: name, Operation: "init", Err: err})
			}
			e.recompose()
		})
	}

	unsubscribe := e.cfg.Adapter.Subscribe(e.onSnapshot)
	e.mu.Lock()
	e.unsubscribe = unsubscribe
	snapshot := e.snapshot
	e.mu.Unlock()

	e.fetch(snapshot, false)
	return nil
}

// Close detaches the engine from its adapter and disposes features.
// Results arriving after Close are ignored.
func (e *Engine[T]) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.generation++
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, feature := range e.cfg.Features {
		if disposer, ok := feature.(Disposer); ok {
			disposer.Dispose()
		}
	}
}

// Wait blocks until every tracked background operation has finished.
func (e *Engine[T]) Wait() {
	e.tasks.Wait()
}

// Table returns the latest composed table.
func (e *Engine[T]) Table() Table[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.table
}

// Subscribe observes recompositions.
func (e *Engine[T]) Subscribe(listener func(Table[T])) func() {
	return e.tables.Add(listener)
}

// Adapter returns the engine's state adapter.
func (e *Engine[T]) Adapter() StateAdapter {
	return e.cfg.Adapter
}

// Initial returns the snapshot ResetAll restores.
func (e *Engine[T]) Initial() Snapshot {
	return e.initial.Clone()
}

// Refetch queries the current snapshot again. Repeated calls supersede each
// other; only the latest result is applied.
func (e *Engine[T]) Refetch() {
	e.mu.Lock()
	snapshot := e.snapshot
	started := e.started
	e.mu.Unlock()
	if !started {
		return
	}
	e.fetch(snapshot, true)
}

// ResetAll runs every enabled feature's OnReset and then resets the adapter
// to the initial snapshot.
func (e *Engine[T]) ResetAll() {
	e.mu.Lock()
	resets := append([]func(){}, e.resets...)
	e.mu.Unlock()

	for _, reset := range resets {
		reset()
	}
	e.cfg.Adapter.SetSnapshot(e.initial.Clone(), ReasonReset)
	e.recompose()
}

// Notices returns the active notices.
func (e *Engine[T]) Notices() []Notice {
	return e.notices.List()
}

// Dismiss removes a notice and recomposes.
func (e *Engine[T]) Dismiss(id string) bool {
	removed := e.notices.Dismiss(id)
	if removed {
		e.mu.Lock()
		if e.fetchNotice == id {
			e.fetchNotice = ""
		}
		e.mu.Unlock()
		e.recompose()
	}
	return removed
}

func (e *Engine[T]) onSnapshot(next Snapshot, reason ChangeReason) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	prev := e.snapshot
	e.snapshot = next
	e.mu.Unlock()

	for _, feature := range e.cfg.Features {
		if observer, ok := feature.(SnapshotObserver); ok && feature.Enabled() {
			observer.SnapshotChanged(prev, next, reason)
		}
	}
	e.fetch(next, false)
	e.recompose()
}

func (e *Engine[T]) fetch(snapshot Snapshot, force bool) {
	fingerprint := snapshot.Fingerprint()
	e.mu.Lock()
	if e.closed || (!force && fingerprint == e.queried) {
		e.mu.Unlock()
		return
	}
	e.queried = fingerprint
	e.generation++
	generation := e.generation
	e.status = StatusLoading
	ctx := e.ctx
	e.mu.Unlock()

	e.recompose()
	e.tasks.Go(func() {
		start := e.opts.now()
		result, err := e.cfg.Source.Query(ctx, snapshot)
		duration := e.opts.now().Sub(start)
		e.opts.metrics.Observe(ctx, "grid.query", err == nil, duration)
		e.opts.logger.Log(LogEvent{
			Component: componentEngine,
			Operation: "query",
			Key:       fingerprint,
			Duration:  duration,
			Err:       err,
		})
		e.commit(generation, snapshot, result, err)
	})
}

func (e *Engine[T]) commit(generation uint64, snapshot Snapshot, result DataResult[T], err error) {
	e.mu.Lock()
	if generation != e.generation {
		e.mu.Unlock()
		e.opts.logger.Log(LogEvent{
			Component: componentEngine,
			Operation: "query.discard",
			Key:       snapshot.Fingerprint(),
			Err:       ErrStaleResult,
		})
		return
	}
	previousNotice := e.fetchNotice
	e.fetchNotice = ""
	if err != nil {
		severity := SeverityBlocking
		message := "data could not be loaded"
		if e.hasData {
			severity = SeverityNonBlocking
			message = "data could not be refreshed; showing previous results"
			e.status = StatusReady
		} else {
			e.status = StatusError
		}
		e.mu.Unlock()

		if previousNotice != "" {
			e.notices.Dismiss(previousNotice)
		}
		notice := NewNotice(noticeSource, codeFetchFailed, message, fmt.Errorf("grid: query: %w", err))
		notice.Severity = severity
		notice = e.report(notice)

		e.mu.Lock()
		e.fetchNotice = notice.ID
		e.mu.Unlock()
		e.recompose()
		return
	}

	e.result = result
	e.hasData = true
	e.status = StatusReady
	e.mu.Unlock()

	if previousNotice != "" {
		e.notices.Dismiss(previousNotice)
	}
	for _, feature := range e.cfg.Features {
		if observer, ok := feature.(DataObserver[T]); ok && feature.Enabled() {
			observer.DataChanged(snapshot, result)
		}
	}
	e.recompose()
}

func (e *Engine[T]) report(notice Notice) Notice {
	notice = e.notices.Add(notice)
	e.opts.logger.Log(LogEvent{
		Component: notice.Source,
		Operation: "notice." + notice.Code,
		Key:       notice.ID,
		Err:       notice.Err,
		Fields:    map[string]any{"severity": string(notice.Severity), "message": notice.Message},
	})
	if e.opts.onNotice != nil {
		e.opts.onNotice(notice)
	}
	return notice
}

// recompose folds the features over the current base and publishes the
// table. Concurrent calls coalesce into one more pass.
func (e *Engine[T]) recompose() {
	e.mu.Lock()
	if e.composing {
		e.dirty = true
		e.mu.Unlock()
		return
	}
	e.composing = true
	e.mu.Unlock()

	for {
		table, resets := e.compose()

		e.mu.Lock()
		if e.dirty {
			e.dirty = false
			e.mu.Unlock()
			continue
		}
		e.table = table
		e.resets = resets
		e.composing = false
		e.mu.Unlock()

		e.tables.Notify(table)
		return
	}
}

func (e *Engine[T]) compose() (Table[T], []func()) {
	e.mu.Lock()
	snapshot := e.snapshot.Clone()
	status := e.status
	result := e.result
	e.mu.Unlock()

	host := e.hostFor(componentEngine)
	ctx := FeatureContext[T]{
		Rows:      result.Rows,
		Snapshot:  snapshot,
		Total:     result.Total,
		PageCount: result.PageCount,
		Status:    status,
		RowID:     e.cfg.RowID,
		Columns:   append([]Column(nil), e.cfg.Columns...),
		Host:      host,
	}

	composition := Compose(e.base(ctx), e.cfg.Features, ctx)

	notices := e.notices.List()
	var blocking *Notice
	for i := range notices {
		if notices[i].Blocking() {
			n := notices[i]
			blocking = &n
			break
		}
	}

	table := Table[T]{
		Options:    composition.Options,
		Actions:    composition.Actions,
		Activity:   composition.Activity,
		Status:     status,
		Snapshot:   snapshot,
		Pagination: NewPagination(snapshot, result.PageCount, result.Total),
		Selection:  SelectionKey.Must(composition.Meta),
		Tree:       TreeKey.Must(composition.Meta),
		DragSort:   DragSortKey.Must(composition.Meta),
		Virtual:    VirtualKey.Must(composition.Meta),
		Density:    DensityKey.Must(composition.Meta),
		Meta:       composition.Meta,
		Error:      blocking,
		Errors:     notices,
		ExtraMeta:  result.ExtraMeta,
	}
	if table.Selection.Mode == "" {
		table.Selection = SelectionView{Mode: SelectionDisabled, Scope: EmptyScope(), SelectedRowIDs: []string{}}
	}
	return table, composition.Resets()
}

func (e *Engine[T]) base(ctx FeatureContext[T]) Composition[T] {
	adapter := e.cfg.Adapter
	current := func() Snapshot { return adapter.Snapshot() }
	options := TableOptions[T]{
		Data:             ctx.Rows,
		Columns:          ctx.Columns,
		GetRowID:         e.cfg.RowID,
		ManualPagination: true,
		ManualSorting:    true,
		ManualFiltering:  true,
		PageIndex:        ctx.Snapshot.Page - 1,
		PageSize:         ctx.Snapshot.Size,
		PageCount:        ctx.PageCount,
		Sorting:          append([]SortRule(nil), ctx.Snapshot.Sort...),
		State:            Slots{},
		Meta:             Slots{},
	}
	actions := Actions{
		SetPage: func(page int) {
			adapter.SetSnapshot(current().WithPage(page), ReasonPage)
		},
		SetPageSize: func(size int) {
			adapter.SetSnapshot(current().WithSize(size).WithPage(1), ReasonSize)
		},
		SetSort: func(rules []SortRule) {
			adapter.SetSnapshot(current().WithSort(rules), ReasonSort)
		},
		SetFilters: func(filters Filters) {
			adapter.SetSnapshot(current().WithFilters(filters), ReasonFilters)
		},
		SetFilter: func(key string, value any) {
			adapter.SetSnapshot(current().WithFilter(key, value), ReasonFilters)
		},
		ResetAll:      e.ResetAll,
		Refetch:       e.Refetch,
		DismissNotice: func(id string) { e.Dismiss(id) },
	}
	activity := Activity{Ready: true, Fetching: ctx.Status == StatusLoading}
	return Composition[T]{
		Options:  options,
		Actions:  actions,
		Activity: activity,
		Meta:     Slots{},
	}
}

// tracker counts background goroutines so Wait can block until they settle,
// including goroutines started while waiting.
type tracker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	running int
}

func (t *tracker) init() {
	if t.cond == nil {
		t.cond = sync.NewCond(&t.mu)
	}
}

func (t *tracker) Go(fn func()) {
	t.mu.Lock()
	t.init()
	t.running++
	t.mu.Unlock()

	go func() {
		defer func() {
			t.mu.Lock()
			t.running--
			if t.running == 0 {
				t.cond.Broadcast()
			}
			t.mu.Unlock()
		}()
		fn()
	}()
}

func (t *tracker) Wait() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.init()
	for t.running > 0 {
		t.cond.Wait()
	}
}

// subscribers is an ordered listener registry for arbitrary payloads.
type subscribers[V any] struct {
	mu     sync.Mutex
	nextID uint64
	items  map[uint64]func(V)
}

func (s *subscribers[V]) Add(listener func(V)) func() {
	if listener == nil {
		return func() {}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = make(map[uint64]func(V))
	}
	id := s.nextID
	s.nextID++
	s.items[id] = listener
	return func() {
		s.mu.Lock()
		delete(s.items, id)
		s.mu.Unlock()
	}
}

func (s *subscribers[V]) Notify(value V) {
	s.mu.Lock()
	ids := make([]uint64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]func(V), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, s.items[id])
	}
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(value)
	}
}

type engineHost[T any] struct {
	engine *Engine[T]
	source string
}

func (e *Engine[T]) hostFor(source string) Host {
	return engineHost[T]{engine: e, source: source}
}

func (h engineHost[T]) Snapshot() Snapshot {
	return h.engine.cfg.Adapter.Snapshot()
}

func (h engineHost[T]) SetSnapshot(next Snapshot, reason ChangeReason) {
	h.engine.cfg.Adapter.SetSnapshot(next, reason)
}

func (h engineHost[T]) Invalidate() {
	h.engine.recompose()
}

func (h engineHost[T]) Report(notice Notice) Notice {
	if notice.Source == "" {
		notice.Source = h.source
	}
	notice = h.engine.report(notice)
	h.engine.recompose()
	return notice
}

func (h engineHost[T]) Dismiss(id string) bool {
	return h.engine.Dismiss(id)
}

func (h engineHost[T]) Go(fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	h.engine.mu.Lock()
	ctx := h.engine.ctx
	h.engine.mu.Unlock()
	h.engine.tasks.Go(func() { fn(ctx) })
}

func (h engineHost[T]) Logger() Logger {
	return h.engine.opts.logger
}

func (h engineHost[T]) Metrics() MetricsRecorder {
	return h.engine.opts.metrics
}

func (h engineHost[T]) Now() time.Time {
	return h.engine.opts.now()
}

// IsStale reports whether err marks a discarded async result.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleResult)
}
