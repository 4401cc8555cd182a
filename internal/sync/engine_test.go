package sync

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/state"
)

func waitFor(t *testing.T, ch <-chan state.Snapshot[model.Professional], want []int64) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	var last []int64
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed; last ids = %v, want %v", last, want)
			}
			if snap.Err != nil {
				t.Fatalf("snapshot error: %v", snap.Err)
			}
			last = ids(snap.Items)
			if slices.Equal(last, want) {
				return
			}
		case <-timeout:
			t.Fatalf("timed out; last ids = %v, want %v", last, want)
		}
	}
}

// ---------------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------------

func TestRefreshAll_ReplacesNotMerges(t *testing.T) {
	remote := newMockRemote(
		proWire{ID: 2, Name: "Dr. B"},
		proWire{ID: 3, Name: "Dr. C"},
	)
	repo, table, diag := newTestRepo(t, remote)
	seed(t, table, model.Professional{ID: 1, Name: "Dr. A"}, model.Professional{ID: 2, Name: "Dr. B (old)"})

	outcome, err := repo.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if outcome != Replaced {
		t.Errorf("outcome = %v, want %v", outcome, Replaced)
	}
	if got := listIDs(t, table); !slices.Equal(got, []int64{2, 3}) {
		t.Errorf("ids = %v, want [2 3]", got)
	}

	p, _ := table.GetByID(context.Background(), 2)
	if p == nil || p.Name != "Dr. B" {
		t.Errorf("professional 2 = %+v, want remote version", p)
	}
	if got := diag.refreshes(); !slices.Equal(got, []RefreshOutcome{Replaced}) {
		t.Errorf("reported outcomes = %v", got)
	}
}

func TestRefreshAll_EmptyListKeepsCache(t *testing.T) {
	repo, table, _ := newTestRepo(t, newMockRemote())
	seed(t, table, model.Professional{ID: 1, Name: "Dr. A"}, model.Professional{ID: 2, Name: "Dr. B"})

	outcome, err := repo.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if outcome != Unchanged {
		t.Errorf("outcome = %v, want %v", outcome, Unchanged)
	}
	if got := listIDs(t, table); !slices.Equal(got, []int64{1, 2}) {
		t.Errorf("ids = %v, want [1 2]", got)
	}
}

func TestRefreshAll_AllDroppedKeepsCache(t *testing.T) {
	repo, table, diag := newTestRepo(t, newMockRemote(proWire{ID: 9}))
	seed(t, table, model.Professional{ID: 1, Name: "Dr. A"})

	outcome, err := repo.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if outcome != Unchanged {
		t.Errorf("outcome = %v, want %v", outcome, Unchanged)
	}
	if got := listIDs(t, table); !slices.Equal(got, []int64{1}) {
		t.Errorf("ids = %v, want [1]", got)
	}
	if diag.dropped != 1 {
		t.Errorf("dropped = %d, want 1", diag.dropped)
	}
}

func TestRefreshAll_DropsRecordsWithoutIdentifier(t *testing.T) {
	remote := newMockRemote()
	remote.listing = []proWire{
		{Name: "Dr. NoID"},
		{ID: 5, Name: "Dr. Five"},
		{ID: 5, Name: "Dr. Five bis"},
	}
	repo, table, diag := newTestRepo(t, remote)
	seed(t, table, model.Professional{ID: 1, Name: "Dr. A"})

	outcome, err := repo.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if outcome != Replaced {
		t.Errorf("outcome = %v, want %v", outcome, Replaced)
	}
	if got := listIDs(t, table); !slices.Equal(got, []int64{5}) {
		t.Errorf("ids = %v, want [5]", got)
	}
	p, _ := table.GetByID(context.Background(), 5)
	if p == nil || p.Name != "Dr. Five" {
		t.Errorf("professional 5 = %+v, want first listed version", p)
	}
	if diag.dropped != 2 {
		t.Errorf("dropped = %d, want 2", diag.dropped)
	}
}

func TestRefreshAll_OnlyKeylessRecordsKeepsCache(t *testing.T) {
	remote := newMockRemote()
	remote.listing = []proWire{{Name: "Dr. NoID"}}
	repo, table, _ := newTestRepo(t, remote)
	seed(t, table, model.Professional{ID: 1, Name: "Dr. A"})

	outcome, err := repo.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if outcome != Unchanged {
		t.Errorf("outcome = %v, want %v", outcome, Unchanged)
	}
	if got := listIDs(t, table); !slices.Equal(got, []int64{1}) {
		t.Errorf("ids = %v, want [1]", got)
	}
}

func TestRefreshAll_SkipsUnmappableRecords(t *testing.T) {
	repo, table, diag := newTestRepo(t, newMockRemote(
		proWire{ID: 1, Name: "Dr. A"},
		proWire{ID: 2},
		proWire{ID: 3, Name: "Dr. C"},
	))

	if _, err := repo.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if got := listIDs(t, table); !slices.Equal(got, []int64{1, 3}) {
		t.Errorf("ids = %v, want [1 3]", got)
	}
	if diag.dropped != 1 {
		t.Errorf("dropped = %d, want 1", diag.dropped)
	}
}

func TestRefreshAll_RemoteFailureKeepsCache(t *testing.T) {
	remote := newMockRemote(proWire{ID: 5, Name: "Dr. E"})
	remote.setOffline(true)
	repo, table, diag := newTestRepo(t, remote)
	seed(t, table, model.Professional{ID: 1, Name: "Dr. A"})

	outcome, err := repo.RefreshAll(context.Background())
	if err != nil {
		t.Fatalf("remote failure must not be returned, got %v", err)
	}
	if outcome != RemoteFailed {
		t.Errorf("outcome = %v, want %v", outcome, RemoteFailed)
	}
	if got := listIDs(t, table); !slices.Equal(got, []int64{1}) {
		t.Errorf("ids = %v, want [1]", got)
	}
	if got := diag.remoteFailures(); !slices.Equal(got, []string{"list"}) {
		t.Errorf("remote failures = %v, want [list]", got)
	}
}

func TestRefreshAll_LocalFailurePropagates(t *testing.T) {
	table := openTestTable(t)
	diag := &mockDiag{}
	repo := New[model.Professional, proWire]("professionals",
		newMockRemote(proWire{ID: 1, Name: "Dr. A"}), brokenLocal{table}, proMapper{}, diag)

	_, err := repo.RefreshAll(context.Background())
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("err = %v, want %v", err, errDiskFull)
	}
}

func TestRefreshAll_CoalescesConcurrentCalls(t *testing.T) {
	remote := newMockRemote(proWire{ID: 1, Name: "Dr. A"})
	remote.listGate = make(chan struct{})
	repo, _, _ := newTestRepo(t, remote)

	const callers = 5
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.RefreshAll(context.Background()); err != nil {
				t.Errorf("RefreshAll: %v", err)
			}
		}()
	}

	// Give every caller time to join the in-flight refresh.
	time.Sleep(100 * time.Millisecond)
	close(remote.listGate)
	wg.Wait()

	if got := remote.listCalls(); got != 1 {
		t.Errorf("List called %d times, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// Observe
// ---------------------------------------------------------------------------

func TestObserveAll_EmitsCacheThenRemote(t *testing.T) {
	repo, table, _ := newTestRepo(t, newMockRemote(
		proWire{ID: 1, Name: "Dr. A"},
		proWire{ID: 2, Name: "Dr. B"},
	))
	seed(t, table, model.Professional{ID: 1, Name: "Dr. A"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	waitFor(t, repo.ObserveAll(ctx), []int64{1, 2})
}

func TestObserveAll_OfflineStillEmitsCache(t *testing.T) {
	remote := newMockRemote()
	remote.setOffline(true)
	repo, table, diag := newTestRepo(t, remote)
	seed(t, table, model.Professional{ID: 1, Name: "Dr. A"}, model.Professional{ID: 4, Name: "Dr. D"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	waitFor(t, repo.ObserveAll(ctx), []int64{1, 4})

	if err := repo.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := diag.refreshes(); !slices.Equal(got, []RefreshOutcome{RemoteFailed}) {
		t.Errorf("reported outcomes = %v, want [remote_failed]", got)
	}
}

func TestObserveWhere_FiltersLocally(t *testing.T) {
	repo, _, _ := newTestRepo(t, newMockRemote(
		proWire{ID: 1, Name: "Dr. A", Available: true},
		proWire{ID: 2, Name: "Dr. B", Available: false},
		proWire{ID: 3, Name: "Dr. C", Available: true},
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	waitFor(t, repo.ObserveWhere(ctx, state.Eq(state.ProfessionalAvailable, true)), []int64{1, 3})
}

func TestObserveAll_RefreshOutlivesObserver(t *testing.T) {
	remote := newMockRemote(proWire{ID: 7, Name: "Dr. G"})
	remote.listGate = make(chan struct{})
	repo, table, _ := newTestRepo(t, remote)

	ctx, cancel := context.WithCancel(context.Background())
	_ = repo.ObserveAll(ctx)
	cancel()

	close(remote.listGate)
	if err := repo.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := listIDs(t, table); !slices.Equal(got, []int64{7}) {
		t.Errorf("ids = %v, want [7]", got)
	}
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

func TestCreate_UsesRemoteID(t *testing.T) {
	remote := newMockRemote()
	repo, table, diag := newTestRepo(t, remote)

	got, err := repo.Create(context.Background(), model.Professional{ID: 55, Name: "Dr. New", Available: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID != 101 {
		t.Errorf("ID = %d, want 101 (remote assigned)", got.ID)
	}
	if cached, _ := table.GetByID(context.Background(), 101); cached == nil {
		t.Error("created professional was not cached")
	}
	if len(diag.fallbacks) != 0 {
		t.Errorf("fallbacks = %v, want none", diag.fallbacks)
	}
}

func TestCreate_OfflineFallbackThenReconcile(t *testing.T) {
	remote := newMockRemote(proWire{ID: 1, Name: "Dr. A"})
	remote.setOffline(true)
	repo, table, diag := newTestRepo(t, remote)
	ctx := context.Background()

	draft := model.Professional{Name: "Dr. Offline", Specialty: "Pediatría"}
	created, err := repo.Create(ctx, draft)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("offline create returned no identifier")
	}

	got, err := repo.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || *got != created {
		t.Errorf("GetByID = %+v, want %+v", got, created)
	}
	if !slices.Equal(diag.fallbacks, []string{"create"}) {
		t.Errorf("fallbacks = %v, want [create]", diag.fallbacks)
	}

	// The API never learned about the record, so the next refresh drops it.
	remote.setOffline(false)
	if _, err := repo.RefreshAll(ctx); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}
	if got := listIDs(t, table); !slices.Equal(got, []int64{1}) {
		t.Errorf("ids after refresh = %v, want [1]", got)
	}
}

func TestUpdate_RequiresKey(t *testing.T) {
	repo, _, _ := newTestRepo(t, newMockRemote())

	_, err := repo.Update(context.Background(), model.Professional{Name: "Dr. A"})
	if !errors.Is(err, ErrNoKey) {
		t.Fatalf("err = %v, want %v", err, ErrNoKey)
	}
}

func TestUpdate_Remote(t *testing.T) {
	remote := newMockRemote(proWire{ID: 1, Name: "Dr. A"})
	repo, table, _ := newTestRepo(t, remote)

	got, err := repo.Update(context.Background(), model.Professional{ID: 1, Name: "Dr. A", Specialty: "Cardiología"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Specialty != "Cardiología" {
		t.Errorf("Specialty = %q", got.Specialty)
	}
	w, _ := remote.Get(context.Background(), 1)
	if w.Specialty != "Cardiología" {
		t.Errorf("remote Specialty = %q", w.Specialty)
	}
	cached, _ := table.GetByID(context.Background(), 1)
	if cached == nil || cached.Specialty != "Cardiología" {
		t.Errorf("cached = %+v", cached)
	}
}

func TestUpdate_OfflineKeepsIdentifier(t *testing.T) {
	remote := newMockRemote()
	remote.setOffline(true)
	repo, table, diag := newTestRepo(t, remote)
	seed(t, table, model.Professional{ID: 8, Name: "Dr. H"})

	got, err := repo.Update(context.Background(), model.Professional{ID: 8, Name: "Dr. H", Available: true})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ID != 8 || !got.Available {
		t.Errorf("Update = %+v", got)
	}
	cached, _ := table.GetByID(context.Background(), 8)
	if cached == nil || !cached.Available {
		t.Errorf("cached = %+v, want available", cached)
	}
	if !slices.Equal(diag.fallbacks, []string{"update"}) {
		t.Errorf("fallbacks = %v, want [update]", diag.fallbacks)
	}
}

func TestDelete_AlwaysAppliedLocally(t *testing.T) {
	for _, offline := range []bool{false, true} {
		remote := newMockRemote(proWire{ID: 1, Name: "Dr. A"})
		repo, table, _ := newTestRepo(t, remote)
		seed(t, table, model.Professional{ID: 1, Name: "Dr. A"})
		remote.setOffline(offline)

		if err := repo.Delete(context.Background(), 1); err != nil {
			t.Fatalf("offline=%v: Delete: %v", offline, err)
		}
		remote.setOffline(true)
		got, err := repo.GetByID(context.Background(), 1)
		if err != nil {
			t.Fatalf("offline=%v: GetByID: %v", offline, err)
		}
		if got != nil {
			t.Errorf("offline=%v: GetByID after delete = %+v, want nil", offline, got)
		}
	}
}

func TestGetByID_CachesRemoteRecord(t *testing.T) {
	remote := newMockRemote(proWire{ID: 3, Name: "Dr. C"})
	repo, table, _ := newTestRepo(t, remote)

	got, err := repo.GetByID(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.Name != "Dr. C" {
		t.Fatalf("GetByID = %+v", got)
	}
	if cached, _ := table.GetByID(context.Background(), 3); cached == nil {
		t.Error("record was not cached")
	}
}

func TestGetByID_Missing(t *testing.T) {
	remote := newMockRemote()
	repo, _, diag := newTestRepo(t, remote)

	got, err := repo.GetByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Errorf("GetByID = %+v, want nil", got)
	}
	if !slices.Equal(diag.remoteFailures(), []string{"get"}) {
		t.Errorf("remote failures = %v", diag.remoteFailures())
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	markAvailable := func(p model.Professional) model.Professional {
		p.Available = true
		return p
	}

	t.Run("remote", func(t *testing.T) {
		repo, table, _ := newTestRepo(t, newMockRemote())
		call := func(context.Context) (proWire, error) {
			return proWire{Name: "Dr. A", Available: true}, nil
		}
		got, err := repo.Apply(ctx, 1, "availability", call, markAvailable)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if got == nil || got.ID != 1 || !got.Available {
			t.Errorf("Apply = %+v", got)
		}
		if cached, _ := table.GetByID(ctx, 1); cached == nil {
			t.Error("result was not cached")
		}
	})

	t.Run("fallback", func(t *testing.T) {
		repo, table, diag := newTestRepo(t, newMockRemote())
		seed(t, table, model.Professional{ID: 1, Name: "Dr. A"})
		call := func(context.Context) (proWire, error) { return proWire{}, errOffline }

		got, err := repo.Apply(ctx, 1, "availability", call, markAvailable)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if got == nil || !got.Available {
			t.Errorf("Apply = %+v, want available", got)
		}
		if !slices.Equal(diag.fallbacks, []string{"availability"}) {
			t.Errorf("fallbacks = %v", diag.fallbacks)
		}
	})

	t.Run("fallback without cached row", func(t *testing.T) {
		repo, _, _ := newTestRepo(t, newMockRemote())
		call := func(context.Context) (proWire, error) { return proWire{}, errOffline }

		got, err := repo.Apply(ctx, 1, "availability", call, markAvailable)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if got != nil {
			t.Errorf("Apply = %+v, want nil", got)
		}
	})
}

func TestClear(t *testing.T) {
	repo, table, _ := newTestRepo(t, newMockRemote())
	seed(t, table, model.Professional{ID: 1, Name: "Dr. A"})

	if err := repo.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := listIDs(t, table); len(got) != 0 {
		t.Errorf("ids = %v, want none", got)
	}
}

// ---------------------------------------------------------------------------
// Shutdown
// ---------------------------------------------------------------------------

func TestShutdown_WaitsForRefresh(t *testing.T) {
	remote := newMockRemote(proWire{ID: 1, Name: "Dr. A"})
	remote.listGate = make(chan struct{})
	repo, _, _ := newTestRepo(t, remote)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = repo.ObserveAll(ctx)

	short, cancelShort := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelShort()
	if err := repo.Shutdown(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Shutdown with refresh in flight = %v, want deadline exceeded", err)
	}

	close(remote.listGate)
	if err := repo.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	// No refresh starts after shutdown.
	before := remote.listCalls()
	_ = repo.ObserveAll(ctx)
	if err := repo.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := remote.listCalls(); got != before {
		t.Errorf("List calls after shutdown = %d, want %d", got, before)
	}
}

func TestRefreshOutcome_String(t *testing.T) {
	tests := map[RefreshOutcome]string{
		Replaced:          "replaced",
		Unchanged:         "unchanged",
		RemoteFailed:      "remote_failed",
		RefreshOutcome(0): "unknown",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(o), got, want)
		}
	}
}
