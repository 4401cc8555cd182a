package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/njoerd114/agendasync/internal/state"
)

const (
	otelScope   = "agendasync/sync"
	spanRefresh = "sync.refresh"

	defaultRefreshTimeout = 30 * time.Second
)

// ErrNoKey is returned by [Repository.Update] for an entity without an
// identifier.
var ErrNoKey = errors.New("entity has no identifier")

// ErrClosed is returned by operations on a repository after
// [Repository.Shutdown].
var ErrClosed = errors.New("repository is shut down")

// RefreshOutcome describes what a refresh did to the local table.
type RefreshOutcome int

const (
	// Replaced means the table now holds exactly the remote listing.
	Replaced RefreshOutcome = iota + 1
	// Unchanged means the API answered with no usable records, so the cached
	// rows were kept.
	Unchanged
	// RemoteFailed means the API could not be read; the cached rows were kept.
	RemoteFailed
)

func (o RefreshOutcome) String() string {
	switch o {
	case Replaced:
		return "replaced"
	case Unchanged:
		return "unchanged"
	case RemoteFailed:
		return "remote_failed"
	default:
		return "unknown"
	}
}

// Option configures a [Repository].
type Option func(*options)

type options struct {
	refreshTimeout time.Duration
}

// WithRefreshTimeout bounds each background refresh. Background refreshes
// outlive the observer that started them, so they need their own deadline.
func WithRefreshTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.refreshTimeout = d
		}
	}
}

// Repository is the offline-first repository for one entity type T with wire
// form W. Create one with [New]; it is safe for concurrent use.
type Repository[T Entity[T], W any] struct {
	name   string
	remote RemoteSource[W]
	local  LocalStore[T]
	mapper Mapper[T, W]
	diag   Diagnostics
	opts   options

	tracer trace.Tracer
	group  singleflight.Group

	mu     stdsync.Mutex
	closed bool
	wg     stdsync.WaitGroup
}

// New creates a Repository. name identifies the entity type in logs and
// metrics (e.g. "appointments").
func New[T Entity[T], W any](name string, remote RemoteSource[W], local LocalStore[T], mapper Mapper[T, W], diag Diagnostics, opts ...Option) *Repository[T, W] {
	o := options{refreshTimeout: defaultRefreshTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T, W]{
		name:   name,
		remote: remote,
		local:  local,
		mapper: mapper,
		diag:   diag,
		opts:   o,
		tracer: otel.Tracer(otelScope),
	}
}

// Name returns the entity type name.
func (r *Repository[T, W]) Name() string { return r.name }

// ObserveAll starts a background refresh and returns a live stream of the
// whole local table. The stream never fails because of the network; a
// Snapshot with a non-nil Err means the local store itself broke. Cancel ctx
// to stop the stream; the refresh keeps running to completion regardless.
func (r *Repository[T, W]) ObserveAll(ctx context.Context) <-chan state.Snapshot[T] {
	return r.ObserveWhere(ctx)
}

// ObserveWhere is [Repository.ObserveAll] restricted to the rows matching
// conds. The refresh still covers the whole collection.
func (r *Repository[T, W]) ObserveWhere(ctx context.Context, conds ...state.Cond) <-chan state.Snapshot[T] {
	r.refreshInBackground(ctx)
	return r.local.Observe(ctx, conds...)
}

// refreshInBackground runs RefreshAll detached from ctx's cancellation, so
// tearing down one observer does not abort an update other observers want.
func (r *Repository[T, W]) refreshInBackground(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.refreshTimeout)
		defer cancel()

		if _, err := r.RefreshAll(bg); err != nil {
			r.diag.BackgroundFailed(bg, r.name, err)
		}
	}()
}

// RefreshAll replaces the local table with the remote listing.
//
// The table is replaced only when the API returns at least one usable record;
// an empty answer keeps the cache. Records without a positive identifier are
// dropped, and of several records sharing one identifier only the first is
// kept. API failures are reported to Diagnostics
// and yield [RemoteFailed] with a nil error; the returned error is non-nil
// only when the local store failed. Concurrent calls share one API request.
func (r *Repository[T, W]) RefreshAll(ctx context.Context) (RefreshOutcome, error) {
	v, err, _ := r.group.Do("all", func() (any, error) {
		return r.refresh(ctx)
	})
	outcome, _ := v.(RefreshOutcome)
	return outcome, err
}

func (r *Repository[T, W]) refresh(ctx context.Context) (RefreshOutcome, error) {
	ctx, span := r.tracer.Start(ctx, spanRefresh, trace.WithAttributes(
		attribute.String("sync.entity", r.name),
	))
	defer span.End()

	wires, err := r.remote.List(ctx)
	if err != nil {
		r.diag.RemoteFailed(ctx, r.name, "list", err)
		r.diag.Refreshed(ctx, r.name, RemoteFailed, 0)
		span.RecordError(err)
		span.SetAttributes(attribute.String("sync.outcome", RemoteFailed.String()))
		return RemoteFailed, nil
	}

	items := make([]T, 0, len(wires))
	seen := make(map[int64]struct{}, len(wires))
	for _, w := range wires {
		item, err := r.mapper.FromWire(w)
		if err != nil {
			r.diag.RecordDropped(ctx, r.name, err)
			continue
		}
		// The cache keys rows by the API's identifier; never invent one.
		id := item.Key()
		if id <= 0 {
			r.diag.RecordDropped(ctx, r.name, fmt.Errorf("%s record has no identifier", r.name))
			continue
		}
		if _, dup := seen[id]; dup {
			r.diag.RecordDropped(ctx, r.name, fmt.Errorf("duplicate %s identifier %d", r.name, id))
			continue
		}
		seen[id] = struct{}{}
		items = append(items, item)
	}
	span.SetAttributes(
		attribute.Int("sync.received", len(wires)),
		attribute.Int("sync.dropped", len(wires)-len(items)),
	)

	if len(items) == 0 {
		r.diag.Refreshed(ctx, r.name, Unchanged, 0)
		span.SetAttributes(attribute.String("sync.outcome", Unchanged.String()))
		return Unchanged, nil
	}

	if err := r.local.ReplaceAll(ctx, items); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "local replace failed")
		return Unchanged, fmt.Errorf("replacing local %s: %w", r.name, err)
	}

	r.diag.Refreshed(ctx, r.name, Replaced, len(items))
	span.SetAttributes(attribute.String("sync.outcome", Replaced.String()))
	return Replaced, nil
}

// GetByID returns the entity from the API when reachable, caching it locally,
// and otherwise from the local table. It returns (nil, nil) when neither has
// the record.
func (r *Repository[T, W]) GetByID(ctx context.Context, id int64) (*T, error) {
	w, err := r.remote.Get(ctx, id)
	if err == nil {
		item, mapErr := r.mapper.FromWire(w)
		if mapErr == nil {
			item = item.WithKey(id)
			if _, err := r.local.InsertOrReplace(ctx, item); err != nil {
				return nil, fmt.Errorf("caching %s %d: %w", r.name, id, err)
			}
			return &item, nil
		}
		r.diag.RecordDropped(ctx, r.name, mapErr)
	} else {
		r.diag.RemoteFailed(ctx, r.name, "get", err)
	}

	item, err := r.local.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading local %s %d: %w", r.name, id, err)
	}
	return item, nil
}

// Create sends draft to the API and caches the stored entity, with the
// identifier the API assigned. When the API fails, draft is stored locally
// under a store-assigned identifier instead; that row is unsynchronized and
// will be dropped by the next successful refresh. Any identifier on draft is
// ignored.
func (r *Repository[T, W]) Create(ctx context.Context, draft T) (T, error) {
	var zero T
	draft = draft.WithKey(0)

	w, err := r.remote.Create(ctx, r.mapper.ToWire(draft))
	if err == nil {
		created, mapErr := r.mapper.FromWire(w)
		switch {
		case mapErr != nil:
			r.diag.RecordDropped(ctx, r.name, mapErr)
		case created.Key() == 0:
			r.diag.RecordDropped(ctx, r.name, fmt.Errorf("created %s has no identifier", r.name))
		default:
			if _, err := r.local.InsertOrReplace(ctx, created); err != nil {
				return zero, fmt.Errorf("caching created %s: %w", r.name, err)
			}
			return created, nil
		}
	} else {
		r.diag.RemoteFailed(ctx, r.name, "create", err)
	}

	id, err := r.local.InsertOrReplace(ctx, draft)
	if err != nil {
		return zero, fmt.Errorf("storing local %s: %w", r.name, err)
	}
	r.diag.FallbackWrite(ctx, r.name, "create", id)
	return draft.WithKey(id), nil
}

// Update sends item to the API and caches the stored version. When the API
// fails, item itself is written to the local table. The identifier never
// changes.
func (r *Repository[T, W]) Update(ctx context.Context, item T) (T, error) {
	var zero T
	id := item.Key()
	if id == 0 {
		return zero, fmt.Errorf("updating %s: %w", r.name, ErrNoKey)
	}

	w, err := r.remote.Update(ctx, id, r.mapper.ToWire(item))
	if err == nil {
		updated, mapErr := r.mapper.FromWire(w)
		if mapErr == nil {
			updated = updated.WithKey(id)
			if _, err := r.local.InsertOrReplace(ctx, updated); err != nil {
				return zero, fmt.Errorf("caching updated %s %d: %w", r.name, id, err)
			}
			return updated, nil
		}
		r.diag.RecordDropped(ctx, r.name, mapErr)
	} else {
		r.diag.RemoteFailed(ctx, r.name, "update", err)
	}

	if _, err := r.local.InsertOrReplace(ctx, item); err != nil {
		return zero, fmt.Errorf("storing local %s %d: %w", r.name, id, err)
	}
	r.diag.FallbackWrite(ctx, r.name, "update", id)
	return item, nil
}

// Apply runs a partial update: call performs it on the API and returns the
// stored entity; if call fails, fallback is applied to the cached row
// instead. It returns (nil, nil) when the API failed and no cached row
// exists.
func (r *Repository[T, W]) Apply(ctx context.Context, id int64, op string, call func(ctx context.Context) (W, error), fallback func(item T) T) (*T, error) {
	w, err := call(ctx)
	if err == nil {
		updated, mapErr := r.mapper.FromWire(w)
		if mapErr == nil {
			updated = updated.WithKey(id)
			if _, err := r.local.InsertOrReplace(ctx, updated); err != nil {
				return nil, fmt.Errorf("caching %s %d after %s: %w", r.name, id, op, err)
			}
			return &updated, nil
		}
		r.diag.RecordDropped(ctx, r.name, mapErr)
	} else {
		r.diag.RemoteFailed(ctx, r.name, op, err)
	}

	cached, err := r.local.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading local %s %d: %w", r.name, id, err)
	}
	if cached == nil {
		return nil, nil //nolint:nilnil // "not found" sentinel, as in GetByID
	}
	updated := fallback(*cached).WithKey(id)
	if _, err := r.local.InsertOrReplace(ctx, updated); err != nil {
		return nil, fmt.Errorf("storing local %s %d: %w", r.name, id, err)
	}
	r.diag.FallbackWrite(ctx, r.name, op, id)
	return &updated, nil
}

// Delete removes the entity from the API and, whatever the API answered,
// from the local table. Only a local failure is returned.
func (r *Repository[T, W]) Delete(ctx context.Context, id int64) error {
	if err := r.remote.Delete(ctx, id); err != nil {
		r.diag.RemoteFailed(ctx, r.name, "delete", err)
	}
	if err := r.local.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting local %s %d: %w", r.name, id, err)
	}
	return nil
}

// Clear empties the local table without touching the API.
func (r *Repository[T, W]) Clear(ctx context.Context) error {
	if err := r.local.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clearing local %s: %w", r.name, err)
	}
	return nil
}

// Shutdown stops new background refreshes and waits for running ones, or
// until ctx is done.
func (r *Repository[T, W]) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s refreshes: %w", r.name, ctx.Err())
	}
}
