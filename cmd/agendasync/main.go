// Agendasync keeps an offline-first local copy of a medical booking API
// (appointments, professionals, users) and lets you read and change it from
// the command line, online or not.
//
// Usage:
//
//	agendasync init                          # interactive first-run wizard
//	agendasync sync-once                     # refresh every local table then exit
//	agendasync status                        # show config, cache and API state
//	agendasync appointments list [--watch]   # browse appointments
//	agendasync professionals list            # browse professionals
//	agendasync users login <username>        # sign in and cache the account
//	agendasync medications search <name>     # look up drug labels (online only)
//	agendasync mock-server --seed            # run a local booking API
//	agendasync version                       # print version
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/njoerd114/agendasync/internal/app"
	"github.com/njoerd114/agendasync/internal/config"
	"github.com/njoerd114/agendasync/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	root := newRootCmd(newCLI(os.Stdin, os.Stdout, os.Stderr))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// cli carries the global flags and I/O shared by every command.
type cli struct {
	cfgPath string
	verbose bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{in: in, out: out, errOut: errOut}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "agendasync",
		Short: "agendasync - offline-first client for a medical booking API",
		Long: `agendasync keeps a local SQLite copy of appointments, professionals and
users. Reads are served from the local copy first and refreshed from the API
in the background; writes go to the API and fall back to the local copy when
it is unreachable.

Run 'agendasync init' to create a configuration file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	defaultCfg, _ := config.DefaultPath()
	root.PersistentFlags().StringVar(&c.cfgPath, "config", defaultCfg, "path to config.yaml")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddGroup(
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
		&cobra.Group{ID: "data", Title: "Data Commands:"},
	)

	root.AddCommand(
		c.initCmd(),
		c.syncOnceCmd(),
		c.statusCmd(),
		c.mockServerCmd(),
		c.versionCmd(),

		c.appointmentsCmd(),
		c.professionalsCmd(),
		c.usersCmd(),
		c.medicationsCmd(),
	)
	root.SetVersionTemplate("agendasync {{.Version}}\n")
	return root
}

// --- shared plumbing ---------------------------------------------------------

// logger builds the stderr logger for commands that run without a config.
func (c *cli) logger(level slog.Level) *slog.Logger {
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := telemetry.NewLogger(c.errOut, level, false)
	slog.SetDefault(logger)
	return logger
}

// session is an opened configuration: logger, optional telemetry, and the
// wired application.
type session struct {
	cfg    *config.Config
	log    *slog.Logger
	app    *app.App
	closer []func(context.Context) error
}

// open loads the config, starts telemetry when configured, and wires the
// repositories. The returned session must be closed.
func (c *cli) open(ctx context.Context) (*session, error) {
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("loading config from %q: %w\n\nRun 'agendasync init' to create one", c.cfgPath, err)
	}

	level := cfg.Level()
	if c.verbose {
		level = slog.LevelDebug
	}

	s := &session{cfg: cfg}

	// --- Telemetry (optional) ------------------------------------------------

	exportLogs := false
	var telErr error
	if cfg.Telemetry != nil {
		shutdownTel, err := telemetry.Setup(ctx, telemetry.FromConfig(cfg.Telemetry))
		if err != nil {
			telErr = err
		} else {
			exportLogs = true
			s.closer = append(s.closer, shutdownTel)
		}
	}

	// --- Logger --------------------------------------------------------------

	s.log = telemetry.NewLogger(c.errOut, level, exportLogs)
	slog.SetDefault(s.log)
	if telErr != nil {
		s.log.Error("telemetry setup failed, continuing without telemetry", "error", telErr)
	} else if exportLogs {
		s.log.Debug("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
	}
	s.log.Debug("config loaded", "api_base_url", cfg.APIBaseURL, "db_path", cfg.DBPath)

	// --- Components ----------------------------------------------------------

	a, err := app.New(ctx, cfg, s.log)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.app = a
	s.closer = append([]func(context.Context) error{a.Close}, s.closer...)
	return s, nil
}

// Close stops the application first, then flushes telemetry.
func (s *session) Close() error {
	// A fresh context: the command context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var firstErr error
	for _, fn := range s.closer {
		if err := fn(ctx); err != nil {
			if s.log != nil {
				s.log.Error("shutdown", "error", err)
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// withSession runs fn with an opened session and closes it afterwards.
func (c *cli) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return fn(ctx, s)
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
