package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/njoerd114/agendasync/internal/backend"
	"github.com/njoerd114/agendasync/internal/config"
	"github.com/njoerd114/agendasync/internal/setup"
	syncp "github.com/njoerd114/agendasync/internal/sync"
)

func (c *cli) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "init",
		Short:   "Interactive first-run wizard",
		GroupID: "setup",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := c.logger(slog.LevelWarn)
			wiz := setup.NewWizard(c.in, c.out, logger, c.cfgPath)
			_, err := wiz.Run(cmd.Context())
			return err
		},
	}
}

func (c *cli) syncOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "sync-once",
		Short:   "Refresh every local table from the API then exit",
		GroupID: "setup",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				start := time.Now()
				results, err := s.app.Warm(ctx)

				tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ENTITY\tOUTCOME\tROWS")
				for _, r := range results {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Entity, r.Outcome, rowCount(ctx, s, r.Entity))
				}
				_ = tw.Flush()

				remoteFailed := 0
				for _, r := range results {
					if r.Outcome == syncp.RemoteFailed {
						remoteFailed++
					}
				}
				s.log.Info("sync complete", "elapsed", time.Since(start).Round(time.Millisecond), "remote_failed", remoteFailed)
				if remoteFailed == len(results) {
					fmt.Fprintln(c.out, "\nThe API is unreachable; the local copy was left as it was.")
				}
				return err
			})
		},
	}
}

// rowCount returns the number of cached rows for entity as text.
func rowCount(ctx context.Context, s *session, entity string) string {
	var (
		n   int
		err error
	)
	switch entity {
	case "appointments":
		n, err = s.app.Store.Appointments().Count(ctx)
	case "professionals":
		n, err = s.app.Store.Professionals().Count(ctx)
	case "users":
		n, err = s.app.Store.Users().Count(ctx)
	default:
		return "?"
	}
	if err != nil {
		return "?"
	}
	return fmt.Sprint(n)
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Short:   "Show config, local cache and API state",
		GroupID: "setup",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runStatus(cmd.Context())
		},
	}
}

func (c *cli) runStatus(ctx context.Context) error {
	fmt.Fprintln(c.out, "agendasync status")
	fmt.Fprintln(c.out, "-----------------")

	if _, err := os.Stat(c.cfgPath); err != nil {
		fmt.Fprintf(c.out, "  Config:    not found (%s)\n", c.cfgPath)
		fmt.Fprintln(c.out, "\nRun 'agendasync init' to get started.")
		return nil
	}
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		fmt.Fprintf(c.out, "  Config:    %s (invalid: %v)\n", c.cfgPath, err)
		return nil
	}
	// Stat before opening: opening creates the database.
	dbInfo, dbErr := os.Stat(cfg.DBPath)

	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	fmt.Fprintf(c.out, "  Config:    %s\n", c.cfgPath)
	fmt.Fprintf(c.out, "  API:       %s", s.cfg.APIBaseURL)
	if err := s.app.Client.Ping(ctx); err != nil {
		fmt.Fprintf(c.out, " (unreachable: %v)\n", err)
	} else {
		fmt.Fprintf(c.out, " (reachable)\n")
	}

	if dbErr == nil {
		fmt.Fprintf(c.out, "  Cache DB:  %s (%s)\n", s.cfg.DBPath, humanSize(dbInfo.Size()))
	} else {
		fmt.Fprintf(c.out, "  Cache DB:  %s (new)\n", s.cfg.DBPath)
	}
	for _, entity := range []string{"appointments", "professionals", "users"} {
		fmt.Fprintf(c.out, "    %-14s %s row(s)\n", entity+":", rowCount(ctx, s, entity))
	}

	if s.cfg.Telemetry != nil {
		fmt.Fprintf(c.out, "  Telemetry: %s\n", s.cfg.Telemetry.OTLPEndpoint)
	} else {
		fmt.Fprintf(c.out, "  Telemetry: off\n")
	}
	return nil
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Print version",
		GroupID: "setup",
		Args:    cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintln(c.out, "agendasync", version)
		},
	}
}

func (c *cli) mockServerCmd() *cobra.Command {
	var (
		addr        string
		seed        bool
		requireAuth bool
	)
	cmd := &cobra.Command{
		Use:     "mock-server",
		Short:   "Run an in-memory booking API for local testing",
		GroupID: "setup",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := c.logger(slog.LevelInfo)

			var opts []backend.Option
			if requireAuth {
				opts = append(opts, backend.WithRequireAuth())
			}
			srv, err := backend.New(logger, opts...)
			if err != nil {
				return err
			}
			if seed {
				if err := srv.Seed(); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Seeded accounts use the password %q.\n", backend.SeedPassword)
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("stopping mock API: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().BoolVar(&seed, "seed", false, "load demo professionals, users and appointments")
	cmd.Flags().BoolVar(&requireAuth, "require-auth", false, "reject /api/citas, /api/profesionales and /api/usuarios without a bearer token")
	return cmd
}
