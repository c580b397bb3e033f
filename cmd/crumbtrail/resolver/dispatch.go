// dispatch.go
package resolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/namecache"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/segment"
	"github.com/rs/zerolog"
)

// Dispatcher resolves identifier segments into the name cache. Every lookup
// runs in its own goroutine; a failure only affects its own cache entry.
type Dispatcher struct {
	cache   *namecache.Cache
	lookups map[segment.EntityType]LookupFunc
	timeout time.Duration
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mutex    sync.Mutex
	inFlight int
	idle     chan struct{} // closed when inFlight drops to zero
}

func NewDispatcher(cache *namecache.Cache, source NameSource, config Config, log zerolog.Logger) *Dispatcher {
	if config.LookupTimeout <= 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cache:   cache,
		lookups: LookupTable(source),
		timeout: config.LookupTimeout,
		log:     log.With().Str("component", "resolver").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// LookupTable binds a lookup operation to every resolvable entity type
func LookupTable(source NameSource) map[segment.EntityType]LookupFunc {
	table := make(map[segment.EntityType]LookupFunc, len(segment.EntityTypes))
	for _, entity := range segment.EntityTypes {
		entity := entity
		table[entity] = func(ctx context.Context, id string) (string, error) {
			return source.FetchName(ctx, entity, id)
		}
	}
	return table
}

// Resolve looks up the display name of one entity, bounded by the lookup timeout
func (d *Dispatcher) Resolve(ctx context.Context, entity segment.EntityType, id string) (string, error) {
	lookup, ok := d.lookups[entity]
	if !ok {
		return "", newLookupError(entity, id, fmt.Errorf("%w: %s", ErrUnsupportedEntity, entity))
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	name, err := lookup(ctx, id)
	if err != nil {
		return "", newLookupError(entity, id, err)
	}
	if name == "" {
		return id, nil
	}
	return name, nil
}

// Dispatch starts a lookup for every identifier segment that has no cache
// entry yet. The Pending entry is created before Dispatch returns. It
// returns the ids for which a lookup was started.
func (d *Dispatcher) Dispatch(segments []segment.Segment) []string {
	var dispatched []string
	for _, seg := range segments {
		if !seg.IsIdentifier() {
			continue
		}
		if !d.cache.Reserve(seg.ID) {
			continue
		}

		dispatched = append(dispatched, seg.ID)
		d.start(seg.Entity, seg.ID)
	}

	if len(dispatched) > 0 {
		d.log.Debug().Strs("ids", dispatched).Msg("Dispatched name lookups")
	}
	return dispatched
}

func (d *Dispatcher) start(entity segment.EntityType, id string) {
	d.begin()
	go func() {
		defer d.end()
		d.resolveInto(entity, id)
	}()
}

func (d *Dispatcher) resolveInto(entity segment.EntityType, id string) {
	startTime := time.Now()
	name, err := d.Resolve(d.ctx, entity, id)
	if err != nil {
		d.log.Warn().
			Err(err).
			Str("entity", entity.String()).
			Str("id", id).
			Dur("elapsed", time.Since(startTime)).
			Msgf("Error fetching %s name", entity)
		d.cache.Complete(id, namecache.FailedEntry(FailedLabel))
		return
	}

	d.log.Debug().
		Str("entity", entity.String()).
		Str("id", id).
		Dur("elapsed", time.Since(startTime)).
		Msg("Resolved name")
	d.cache.Complete(id, namecache.ResolvedEntry(name))
}

// Retry looks up a Failed entry again. The entry turns Pending before Retry
// returns; any other state is left alone and Retry reports false.
func (d *Dispatcher) Retry(entity segment.EntityType, id string) bool {
	if !d.cache.ResetIfFailed(id) {
		return false
	}
	d.log.Info().Str("entity", entity.String()).Str("id", id).Msg("Retrying failed lookup")
	d.start(entity, id)
	return true
}

// Wait blocks until all lookups in flight have completed or ctx is done
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mutex.Lock()
	if d.inFlight == 0 {
		d.mutex.Unlock()
		return nil
	}
	idle := d.idle
	d.mutex.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InFlight returns the number of lookups that have not completed yet
func (d *Dispatcher) InFlight() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.inFlight
}

func (d *Dispatcher) begin() {
	d.mutex.Lock()
	if d.inFlight == 0 {
		d.idle = make(chan struct{})
	}
	d.inFlight++
	d.mutex.Unlock()
}

func (d *Dispatcher) end() {
	d.mutex.Lock()
	d.inFlight--
	if d.inFlight == 0 {
		close(d.idle)
	}
	d.mutex.Unlock()
}

// Close cancels all lookups in flight. Their entries complete as Failed.
func (d *Dispatcher) Close() {
	d.cancel()
}
