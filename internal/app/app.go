// Package app wires one process worth of agendasync: a single cache database
// handle, a single API client, the three entity repositories sharing them, and
// the medication search on the drug label API.
//
// Construction and teardown run through an fx application so every component
// is closed in reverse order of creation. Callers use [New] and [App.Close]
// and never see fx directly.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/njoerd114/agendasync/internal/config"
	"github.com/njoerd114/agendasync/internal/remote"
	"github.com/njoerd114/agendasync/internal/repository"
	"github.com/njoerd114/agendasync/internal/state"
	syncp "github.com/njoerd114/agendasync/internal/sync"
)

// App holds the wired components.
type App struct {
	Store         *state.Store
	Client        *remote.Client
	Appointments  *repository.Appointments
	Professionals *repository.Professionals
	Users         *repository.Users
	Medications   *repository.Medications

	log *slog.Logger
	fx  *fx.App
}

// refresher is satisfied by every repository.
type refresher interface {
	Name() string
	RefreshAll(ctx context.Context) (syncp.RefreshOutcome, error)
}

// New opens the cache at cfg.DBPath, builds the API client, and starts the
// repositories. Call [App.Close] when done.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{log: logger}
	a.fx = fx.New(
		fx.NopLogger,
		fx.Supply(cfg, logger),
		fx.Provide(
			openStore,
			newClient,
			newDiagnostics,
			refreshOptions,
			newAppointments,
			newProfessionals,
			newUsers,
			newMedications,
		),
		fx.Populate(&a.Store, &a.Client, &a.Appointments, &a.Professionals, &a.Users, &a.Medications),
	)
	if err := a.fx.Err(); err != nil {
		return nil, fmt.Errorf("wiring components: %w", err)
	}
	if err := a.fx.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting components: %w", err)
	}
	return a, nil
}

// Close waits for in-flight refreshes and closes the database.
func (a *App) Close(ctx context.Context) error {
	return a.fx.Stop(ctx)
}

// Result is the outcome of refreshing one entity type.
type Result struct {
	Entity  string
	Outcome syncp.RefreshOutcome
	Err     error
}

// Warm refreshes all three entity types concurrently. Results come back in a
// fixed order: appointments, professionals, users. The returned error joins
// the local failures; an unreachable API is reported in the outcomes only.
func (a *App) Warm(ctx context.Context) ([]Result, error) {
	repos := []refresher{a.Appointments, a.Professionals, a.Users}
	results := make([]Result, len(repos))

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range repos {
		g.Go(func() error {
			start := time.Now()
			outcome, err := r.RefreshAll(gctx)
			results[i] = Result{Entity: r.Name(), Outcome: outcome, Err: err}
			a.log.Debug("warm", "entity", r.Name(), "outcome", outcome, "elapsed", time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Entity, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

// --- providers ---------------------------------------------------------------

func openStore(lc fx.Lifecycle, cfg *config.Config) (*state.Store, error) {
	store, err := state.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return store.Close() },
	})
	return store, nil
}

func newClient(cfg *config.Config, logger *slog.Logger) (*remote.Client, error) {
	opts := []remote.Option{
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithMaxAttempts(cfg.MaxAttempts),
	}
	if cfg.APIToken != "" {
		opts = append(opts, remote.WithToken(cfg.APIToken))
	}
	return remote.New(cfg.APIBaseURL, logger, opts...)
}

func newDiagnostics(logger *slog.Logger) syncp.Diagnostics {
	return syncp.NewTelemetry(logger)
}

func refreshOptions(cfg *config.Config) []syncp.Option {
	if cfg.RefreshTimeout <= 0 {
		return nil
	}
	return []syncp.Option{syncp.WithRefreshTimeout(cfg.RefreshTimeout)}
}

// shutdownHook registers the repository's Shutdown so pending background
// refreshes finish before the store closes. fx runs OnStop hooks in reverse,
// so repositories stop before the store they write to.
func shutdownHook(lc fx.Lifecycle, shutdown func(context.Context) error) {
	lc.Append(fx.Hook{OnStop: shutdown})
}

func newAppointments(lc fx.Lifecycle, c *remote.Client, s *state.Store, diag syncp.Diagnostics, opts []syncp.Option) *repository.Appointments {
	r := repository.NewAppointments(remote.NewAppointments(c), s.Appointments(), diag, opts...)
	shutdownHook(lc, r.Shutdown)
	return r
}

func newProfessionals(lc fx.Lifecycle, c *remote.Client, s *state.Store, diag syncp.Diagnostics, opts []syncp.Option) *repository.Professionals {
	r := repository.NewProfessionals(remote.NewProfessionals(c), s.Professionals(), diag, opts...)
	shutdownHook(lc, r.Shutdown)
	return r
}

func newUsers(lc fx.Lifecycle, c *remote.Client, s *state.Store, diag syncp.Diagnostics, opts []syncp.Option) *repository.Users {
	r := repository.NewUsers(remote.NewUsers(c), s.Users(), diag, opts...)
	shutdownHook(lc, r.Shutdown)
	return r
}

// newMedications builds its own client: the drug label API is a different host
// and must never see the booking API token.
func newMedications(cfg *config.Config, logger *slog.Logger) (*repository.Medications, error) {
	c, err := remote.New(cfg.DrugLabelURL, logger,
		remote.WithTimeout(cfg.RequestTimeout),
		remote.WithMaxAttempts(cfg.MaxAttempts),
	)
	if err != nil {
		return nil, err
	}
	return repository.NewMedications(remote.NewDrugs(c)), nil
}
