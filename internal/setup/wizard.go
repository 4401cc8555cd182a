package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/njoerd114/agendasync/internal/config"
	"github.com/njoerd114/agendasync/internal/state"
)

// logLevels are offered in this order; info is the default.
var logLevels = []string{"debug", "info", "warn", "error"}

// Wizard guides the user through first-run configuration.
type Wizard struct {
	prompt  *Prompter
	logger  *slog.Logger
	w       io.Writer
	cfgPath string

	// probe is swapped in tests.
	probe func(ctx context.Context, baseURL, token string, logger *slog.Logger) (Probe, error)
}

// NewWizard creates a Wizard that writes its result to cfgPath.
func NewWizard(r io.Reader, w io.Writer, logger *slog.Logger, cfgPath string) *Wizard {
	return &Wizard{
		prompt:  NewPrompter(r, w),
		logger:  logger,
		w:       w,
		cfgPath: cfgPath,
		probe:   ProbeAPI,
	}
}

// Run executes the interactive wizard: API connection, local cache, optional
// telemetry, then the config file.
func (wiz *Wizard) Run(ctx context.Context) (*config.Config, error) {
	fmt.Fprintf(wiz.w, "\nWelcome to agendasync setup!\n")
	fmt.Fprintf(wiz.w, "This wizard connects agendasync to your booking API.\n\n")

	if _, statErr := os.Stat(wiz.cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", wiz.cfgPath)
		if !wiz.prompt.Confirm("Overwrite existing configuration?", false) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return nil, nil //nolint:nilnil // nothing written
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	// Step 1: API connection.
	fmt.Fprintf(wiz.w, "Step 1/4: Booking API\n")

	baseURL := wiz.prompt.String("API base URL", "http://localhost:8080")
	token := wiz.prompt.Secret("API token (Enter for none)", false)

	fmt.Fprintf(wiz.w, "  Connecting to %s...", baseURL)
	probe, err := wiz.probe(ctx, baseURL, token, wiz.logger)
	if err != nil {
		fmt.Fprintf(wiz.w, " failed\n")
		wiz.logger.Warn("API probe failed", "url", baseURL, "error", err)
		if !wiz.prompt.Confirm("The API is unreachable. Save the configuration anyway?", false) {
			return nil, fmt.Errorf("cannot reach the booking API: %w\n\n  Check the URL and token, then try again", err)
		}
	} else {
		fmt.Fprintf(wiz.w, " ok\n")
		wiz.printProbe(probe)
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 2: local cache.
	fmt.Fprintf(wiz.w, "Step 2/4: Local cache\n")

	defDB, err := state.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	dbPath := wiz.prompt.String("Cache database", defDB)
	idx, err := wiz.prompt.Select("Log level", logLevels, 1)
	if err != nil {
		return nil, fmt.Errorf("selecting log level: %w", err)
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 3: telemetry.
	fmt.Fprintf(wiz.w, "Step 3/4: Telemetry\n")

	var tel *config.TelemetryConfig
	if wiz.prompt.Confirm("Export traces, metrics and logs to an OTLP collector?", false) {
		tel = &config.TelemetryConfig{
			OTLPEndpoint: wiz.prompt.String("Collector endpoint (host:port)", "localhost:4317"),
			Insecure:     wiz.prompt.Confirm("Connect without TLS?", true),
		}
	}
	fmt.Fprintf(wiz.w, "\n")

	// Step 4: write config.
	fmt.Fprintf(wiz.w, "Step 4/4: Save configuration\n")

	cfg := &config.Config{
		APIBaseURL: baseURL,
		APIToken:   token,
		DBPath:     dbPath,
		LogLevel:   logLevels[idx],
		Telemetry:  tel,
	}
	if err := cfg.Write(wiz.cfgPath); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(wiz.w, "  Config written to %s\n\n", wiz.cfgPath)
	fmt.Fprintf(wiz.w, "Next steps:\n")
	fmt.Fprintf(wiz.w, "  agendasync sync-once          fill the local cache\n")
	fmt.Fprintf(wiz.w, "  agendasync professionals list browse the cached professionals\n\n")

	return cfg, nil
}

func (wiz *Wizard) printProbe(p Probe) {
	if p.Professionals == 0 {
		fmt.Fprintf(wiz.w, "  No professionals listed yet.\n")
		return
	}
	fmt.Fprintf(wiz.w, "  Found %d professional(s):\n", p.Professionals)
	for _, s := range p.Specialties {
		fmt.Fprintf(wiz.w, "    - %s: %d (%d available)\n", s.Name, s.Total, s.Available)
	}
}
