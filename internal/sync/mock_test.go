package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/state"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

var errOffline = errors.New("connection refused")

// --- Mock wire type and mapper -----------------------------------------------

type proWire struct {
	ID        int64
	Name      string
	Specialty string
	Available bool
}

type proMapper struct{}

func (proMapper) ToWire(p model.Professional) proWire {
	return proWire{ID: p.ID, Name: p.Name, Specialty: p.Specialty, Available: p.Available}
}

func (proMapper) FromWire(w proWire) (model.Professional, error) {
	if w.Name == "" {
		return model.Professional{}, fmt.Errorf("professional %d has no name", w.ID)
	}
	return model.Professional{ID: w.ID, Name: w.Name, Specialty: w.Specialty, Available: w.Available}, nil
}

// --- Mock Remote Source ------------------------------------------------------

type mockRemote struct {
	mu      sync.Mutex
	items   map[int64]proWire
	nextID  int64
	offline bool
	lists   int

	// listGate, when set, blocks List until closed.
	listGate chan struct{}
	// listing, when set, is returned by List verbatim instead of items.
	listing []proWire
}

func newMockRemote(items ...proWire) *mockRemote {
	m := &mockRemote{items: make(map[int64]proWire), nextID: 100}
	for _, w := range items {
		m.items[w.ID] = w
	}
	return m
}

func (m *mockRemote) setOffline(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = v
}

func (m *mockRemote) listCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

func (m *mockRemote) List(_ context.Context) ([]proWire, error) {
	m.mu.Lock()
	m.lists++
	gate := m.listGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return nil, errOffline
	}
	if m.listing != nil {
		return slices.Clone(m.listing), nil
	}
	out := make([]proWire, 0, len(m.items))
	for _, w := range m.items {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRemote) Get(_ context.Context, id int64) (proWire, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return proWire{}, errOffline
	}
	w, ok := m.items[id]
	if !ok {
		return proWire{}, fmt.Errorf("professional %d not found", id)
	}
	return w, nil
}

func (m *mockRemote) Create(_ context.Context, w proWire) (proWire, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return proWire{}, errOffline
	}
	m.nextID++
	w.ID = m.nextID
	m.items[w.ID] = w
	return w, nil
}

func (m *mockRemote) Update(_ context.Context, id int64, w proWire) (proWire, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return proWire{}, errOffline
	}
	if _, ok := m.items[id]; !ok {
		return proWire{}, fmt.Errorf("professional %d not found", id)
	}
	w.ID = id
	m.items[id] = w
	return w, nil
}

func (m *mockRemote) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline {
		return errOffline
	}
	delete(m.items, id)
	return nil
}

// --- Mock Diagnostics --------------------------------------------------------

type mockDiag struct {
	mu         sync.Mutex
	remote     []string // op names
	dropped    int
	outcomes   []RefreshOutcome
	fallbacks  []string
	background []error
}

func (d *mockDiag) RemoteFailed(_ context.Context, _, op string, _ error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remote = append(d.remote, op)
}

func (d *mockDiag) RecordDropped(_ context.Context, _ string, _ error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropped++
}

func (d *mockDiag) Refreshed(_ context.Context, _ string, outcome RefreshOutcome, _ int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes = append(d.outcomes, outcome)
}

func (d *mockDiag) FallbackWrite(_ context.Context, _, op string, _ int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallbacks = append(d.fallbacks, op)
}

func (d *mockDiag) BackgroundFailed(_ context.Context, _ string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.background = append(d.background, err)
}

func (d *mockDiag) remoteFailures() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.remote...)
}

func (d *mockDiag) refreshes() []RefreshOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]RefreshOutcome(nil), d.outcomes...)
}

// --- Failing local store -----------------------------------------------------

// brokenLocal wraps a real table but fails ReplaceAll.
type brokenLocal struct {
	LocalStore[model.Professional]
}

var errDiskFull = errors.New("database or disk is full")

func (brokenLocal) ReplaceAll(context.Context, []model.Professional) error { return errDiskFull }

// --- Helpers -----------------------------------------------------------------

func openTestTable(t *testing.T) *state.Table[model.Professional] {
	t.Helper()
	s, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s.Professionals()
}

func newTestRepo(t *testing.T, remote *mockRemote) (*Repository[model.Professional, proWire], *state.Table[model.Professional], *mockDiag) {
	t.Helper()
	table := openTestTable(t)
	diag := &mockDiag{}
	repo := New[model.Professional, proWire]("professionals", remote, table, proMapper{}, diag)
	t.Cleanup(func() { _ = repo.Shutdown(context.Background()) })
	return repo, table, diag
}

func seed(t *testing.T, table *state.Table[model.Professional], items ...model.Professional) {
	t.Helper()
	if err := table.InsertAll(context.Background(), items); err != nil {
		t.Fatalf("seeding table: %v", err)
	}
}

func ids(items []model.Professional) []int64 {
	out := make([]int64, len(items))
	for i, p := range items {
		out[i] = p.ID
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func listIDs(t *testing.T, table *state.Table[model.Professional]) []int64 {
	t.Helper()
	items, err := table.List(context.Background())
	if err != nil {
		t.Fatalf("listing table: %v", err)
	}
	return ids(items)
}
