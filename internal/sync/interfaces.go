// Package sync implements the offline-first repository engine shared by every
// entity type. A [Repository] fronts one remote collection and one local
// table:
//
//   - Reads are always served from the local table as live streams. Each
//     observe call starts a background refresh that replaces the whole table
//     with the remote listing when the API answers with a non-empty list.
//   - Writes go to the API first and fall back to the local table when the API
//     fails, so the caller always gets a usable entity back.
//   - Remote failures are never returned to readers; they are reported to the
//     injected [Diagnostics]. Local failures always propagate.
//
// Records created while offline live only in the local table and are dropped
// by the next successful refresh if the API never learned about them.
package sync

import (
	"context"

	"github.com/njoerd114/agendasync/internal/state"
)

// Entity is a domain record with a stable int64 identifier. WithKey must
// return a copy and leave the receiver untouched.
type Entity[T any] interface {
	Key() int64
	WithKey(id int64) T
}

// RemoteSource is the API collection for one entity type, in wire form W.
// Implemented by [remote.Resource].
type RemoteSource[W any] interface {
	List(ctx context.Context) ([]W, error)
	Get(ctx context.Context, id int64) (W, error)
	Create(ctx context.Context, w W) (W, error)
	Update(ctx context.Context, id int64, w W) (W, error)
	Delete(ctx context.Context, id int64) error
}

// LocalStore is the durable table for one entity type.
// Implemented by [state.Table].
type LocalStore[T any] interface {
	// ReplaceAll deletes every row and inserts items as one atomic unit.
	ReplaceAll(ctx context.Context, items []T) error
	InsertOrReplace(ctx context.Context, item T) (int64, error)
	// GetByID returns (nil, nil) when the row does not exist.
	GetByID(ctx context.Context, id int64) (*T, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	Observe(ctx context.Context, conds ...state.Cond) <-chan state.Snapshot[T]
}

// Mapper converts between the domain type T and the wire type W.
//
// ToWire is total. FromWire fails only for wire records that are structurally
// unusable (e.g. a required field missing); such records are dropped. Absent
// optional fields map to documented defaults, and ToWire maps those defaults
// back to absent.
//
// A mapper may normalize values the wire cannot carry exactly, such as time
// zones or sub-millisecond precision. FromWire(ToWire(x)) == x holds for every
// x in normal form, which includes everything FromWire returns.
type Mapper[T, W any] interface {
	ToWire(item T) W
	FromWire(w W) (T, error)
}

// Diagnostics receives every failure the engine absorbs instead of returning.
// Implemented by [Telemetry].
type Diagnostics interface {
	// RemoteFailed reports a failed API call that was answered from, or
	// applied to, the local table instead.
	RemoteFailed(ctx context.Context, entity, op string, err error)
	// RecordDropped reports a wire record that could not be mapped.
	RecordDropped(ctx context.Context, entity string, err error)
	// Refreshed reports the outcome of a completed refresh.
	Refreshed(ctx context.Context, entity string, outcome RefreshOutcome, rows int)
	// FallbackWrite reports a write applied only to the local table.
	FallbackWrite(ctx context.Context, entity, op string, id int64)
	// BackgroundFailed reports a local failure inside a background refresh,
	// which has no caller to return it to.
	BackgroundFailed(ctx context.Context, entity string, err error)
}
