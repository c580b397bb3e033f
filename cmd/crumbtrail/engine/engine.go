package engine

import (
	"context"
	"sync"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/namecache"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/presenter"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/resolver"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/segment"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/trail"
	"github.com/rs/zerolog"
)

// RenderFunc receives the views the engine renders, newest last. It may call
// back into the engine; views rendered meanwhile are delivered after it returns.
type RenderFunc func(view presenter.View)

type emission struct {
	seq  uint64
	view presenter.View
}

type Option func(*Engine)

func WithRenderFunc(fn RenderFunc) Option {
	return func(e *Engine) {
		e.onRender = fn
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// Engine recomputes the breadcrumb of the current path whenever the path or
// one of its names in the cache changes. Lookups started for an earlier path
// still fill the cache but only cause a render when their id is on the
// current path.
type Engine struct {
	cache      *namecache.Cache
	dispatcher *resolver.Dispatcher
	presenter  *presenter.Presenter
	onRender   RenderFunc
	log        zerolog.Logger

	mutex     sync.Mutex
	segments  []segment.Segment
	ids       map[string]struct{}
	overrides trail.Overrides
	view      presenter.View
	rendered  uint64

	emitMutex sync.Mutex
	emitted   uint64
	queued    *emission
	draining  bool

	unsubscribe func()
}

func New(cache *namecache.Cache, dispatcher *resolver.Dispatcher, opts ...Option) *Engine {
	e := &Engine{
		cache:      cache,
		dispatcher: dispatcher,
		presenter:  presenter.New(),
		log:        zerolog.Nop(),
		ids:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("component", "engine").Logger()
	e.view = e.presenter.Render(nil)
	e.unsubscribe = cache.Subscribe(e.onCacheChange)
	return e
}

// Navigate makes path the current path and returns its view. Missing names
// are dispatched; the returned view shows them as loading.
func (e *Engine) Navigate(path string, overrides trail.Overrides) presenter.View {
	segments := segment.Parse(path)

	e.mutex.Lock()
	e.segments = segments
	e.overrides = overrides
	e.ids = make(map[string]struct{})
	for _, seg := range segments {
		if seg.IsIdentifier() {
			e.ids[seg.ID] = struct{}{}
		}
	}
	e.mutex.Unlock()

	e.log.Debug().Str("path", path).Int("segments", len(segments)).Msg("Navigating")

	// Reserving pending entries notifies onCacheChange, which renders the
	// loading state for the new path.
	e.dispatcher.Dispatch(segments)
	return e.rerender()
}

// View returns the last rendered view
func (e *Engine) View() presenter.View {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.view
}

// Expand opens the overflow affordance and re-renders
func (e *Engine) Expand() presenter.View {
	e.presenter.Expand()
	return e.rerender()
}

// Retry re-requests a failed name on the current path. It reports false when
// id is not on the current path or its entry has not failed.
func (e *Engine) Retry(id string) (presenter.View, bool) {
	e.mutex.Lock()
	entity := segment.Unknown
	for _, seg := range e.segments {
		if seg.IsIdentifier() && seg.ID == id {
			entity = seg.Entity
			break
		}
	}
	e.mutex.Unlock()

	if entity == segment.Unknown || !e.dispatcher.Retry(entity, id) {
		return e.View(), false
	}
	return e.rerender(), true
}

// Wait blocks until no lookups are in flight
func (e *Engine) Wait(ctx context.Context) error {
	return e.dispatcher.Wait(ctx)
}

// Close detaches the engine from the cache
func (e *Engine) Close() {
	e.unsubscribe()
}

func (e *Engine) onCacheChange(id string, entry namecache.Entry) {
	e.mutex.Lock()
	_, current := e.ids[id]
	e.mutex.Unlock()

	if !current {
		return
	}
	e.log.Debug().Str("id", id).Str("entry", entry.String()).Msg("Name changed on current path")
	e.rerender()
}

func (e *Engine) rerender() presenter.View {
	e.mutex.Lock()
	built := trail.Build(e.segments, e.cache, e.overrides)
	view := e.presenter.Render(built)
	e.view = view
	e.rendered++
	seq := e.rendered
	e.mutex.Unlock()

	e.emit(seq, view)
	return view
}

// emit hands view to the render func unless a newer view was emitted or
// queued already. One caller drains the queue at a time, outside the lock.
func (e *Engine) emit(seq uint64, view presenter.View) {
	if e.onRender == nil {
		return
	}

	e.emitMutex.Lock()
	if seq <= e.emitted || (e.queued != nil && seq <= e.queued.seq) {
		e.emitMutex.Unlock()
		return
	}
	e.queued = &emission{seq: seq, view: view}
	if e.draining {
		e.emitMutex.Unlock()
		return
	}

	e.draining = true
	for e.queued != nil {
		next := e.queued
		e.queued = nil
		e.emitted = next.seq
		e.emitMutex.Unlock()

		e.onRender(next.view)

		e.emitMutex.Lock()
	}
	e.draining = false
	e.emitMutex.Unlock()
}
