package setup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/njoerd114/agendasync/internal/backend"
	"github.com/njoerd114/agendasync/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Prompter ----------------------------------------------------------------

func TestPrompter_String(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("\n\nvalue\n"), &out)

	if got := p.String("URL", "http://localhost:8080"); got != "http://localhost:8080" {
		t.Errorf("default: got %q", got)
	}
	if got := p.String("Name", ""); got != "value" {
		t.Errorf("required: got %q", got)
	}
	if !strings.Contains(out.String(), "required") {
		t.Errorf("expected a re-prompt for the empty answer, got:\n%s", out.String())
	}
}

func TestPrompter_Secret(t *testing.T) {
	p := NewPrompter(strings.NewReader("\n\ns3cret\n"), io.Discard)

	if got := p.Secret("Token", false); got != "" {
		t.Errorf("optional secret: got %q, want empty", got)
	}
	if got := p.Secret("Password", true); got != "s3cret" {
		t.Errorf("required secret: got %q", got)
	}
	if got := p.Secret("Password", true); got != "" {
		t.Errorf("at EOF: got %q, want empty", got)
	}
}

func TestPrompter_Confirm(t *testing.T) {
	cases := []struct {
		input      string
		defaultYes bool
		want       bool
	}{
		{"\n", true, true},
		{"\n", false, false},
		{"y\n", false, true},
		{"YES\n", false, true},
		{"si\n", false, true},
		{"n\n", true, false},
		{"", true, true},
	}
	for _, tc := range cases {
		p := NewPrompter(strings.NewReader(tc.input), io.Discard)
		if got := p.Confirm("ok?", tc.defaultYes); got != tc.want {
			t.Errorf("Confirm(%q, %v) = %v, want %v", tc.input, tc.defaultYes, got, tc.want)
		}
	}
}

func TestPrompter_Select(t *testing.T) {
	opts := []string{"debug", "info", "warn"}

	p := NewPrompter(strings.NewReader("9\nx\n3\n\n"), io.Discard)
	got, err := p.Select("Level", opts, 1)
	if err != nil || got != 2 {
		t.Errorf("Select = %d, %v; want 2", got, err)
	}
	got, err = p.Select("Level", opts, 1)
	if err != nil || got != 1 {
		t.Errorf("Select default = %d, %v; want 1", got, err)
	}
	if _, err := p.Select("Level", opts, 1); err == nil {
		t.Error("expected error at EOF")
	}
	if _, err := p.Select("Level", nil, 0); err == nil {
		t.Error("expected error for no options")
	}
}

// --- ProbeAPI ----------------------------------------------------------------

func TestProbeAPI(t *testing.T) {
	api, err := backend.New(testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := api.Seed(); err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(api.Handler())
	defer ts.Close()

	p, err := ProbeAPI(context.Background(), ts.URL, "", testLogger())
	if err != nil {
		t.Fatalf("ProbeAPI: %v", err)
	}
	if p.Professionals != 5 {
		t.Errorf("Professionals = %d, want 5", p.Professionals)
	}
	if len(p.Specialties) != 5 {
		t.Fatalf("Specialties = %+v, want 5 entries", p.Specialties)
	}
	if p.Specialties[0].Name != "Cardiología" {
		t.Errorf("first specialty = %q, want Cardiología", p.Specialties[0].Name)
	}
	for _, s := range p.Specialties {
		if s.Name == "Dermatología" && s.Available != 0 {
			t.Errorf("Dermatología available = %d, want 0", s.Available)
		}
	}
}

func TestProbeAPI_Offline(t *testing.T) {
	api, err := backend.New(testLogger())
	if err != nil {
		t.Fatal(err)
	}
	api.SetOffline(true)
	ts := httptest.NewServer(api.Handler())
	defer ts.Close()

	if _, err := ProbeAPI(context.Background(), ts.URL, "", testLogger()); err == nil {
		t.Fatal("expected error for an unavailable API")
	}
}

func TestProbeAPI_BadURL(t *testing.T) {
	if _, err := ProbeAPI(context.Background(), "ftp://example.com", "", testLogger()); err == nil {
		t.Fatal("expected error for a non-http URL")
	}
}

// --- Wizard ------------------------------------------------------------------

func stubProbe(err error) func(context.Context, string, string, *slog.Logger) (Probe, error) {
	return func(_ context.Context, baseURL, _ string, _ *slog.Logger) (Probe, error) {
		if err != nil {
			return Probe{}, err
		}
		return Probe{
			BaseURL:       baseURL,
			Professionals: 2,
			Specialties:   []Specialty{{Name: "Pediatría", Total: 2, Available: 1}},
		}, nil
	}
}

func TestWizard_WritesConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	dbPath := filepath.Join(dir, "cache.db")

	input := strings.Join([]string{
		"http://api.test:8080", // base URL
		"tok",                  // token
		dbPath,                 // cache database
		"",                     // log level: default info
		"y",                    // telemetry
		"",                     // endpoint: default
		"",                     // insecure: default yes
	}, "\n") + "\n"

	var out bytes.Buffer
	wiz := NewWizard(strings.NewReader(input), &out, testLogger(), cfgPath)
	wiz.probe = stubProbe(nil)

	cfg, err := wiz.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v\n%s", err, out.String())
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if !strings.Contains(out.String(), "Pediatría: 2 (1 available)") {
		t.Errorf("probe summary missing from output:\n%s", out.String())
	}

	loaded, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load written config: %v", err)
	}
	if loaded.APIBaseURL != "http://api.test:8080" || loaded.APIToken != "tok" {
		t.Errorf("API settings = %q, %q", loaded.APIBaseURL, loaded.APIToken)
	}
	if loaded.DBPath != dbPath {
		t.Errorf("DBPath = %q, want %q", loaded.DBPath, dbPath)
	}
	if loaded.Telemetry == nil || loaded.Telemetry.OTLPEndpoint != "localhost:4317" || !loaded.Telemetry.Insecure {
		t.Errorf("Telemetry = %+v", loaded.Telemetry)
	}
}

func TestWizard_UnreachableAborts(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	input := "http://api.test\n\nn\n"

	wiz := NewWizard(strings.NewReader(input), io.Discard, testLogger(), cfgPath)
	wiz.probe = stubProbe(errors.New("connection refused"))

	if _, err := wiz.Run(context.Background()); err == nil {
		t.Fatal("expected error when the user declines to save")
	}
	if _, err := os.Stat(cfgPath); !os.IsNotExist(err) {
		t.Errorf("config should not exist, stat err = %v", err)
	}
}

func TestWizard_KeepsExistingConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("api_base_url: http://old\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	wiz := NewWizard(strings.NewReader("\n"), io.Discard, testLogger(), cfgPath)
	cfg, err := wiz.Run(context.Background())
	if err != nil || cfg != nil {
		t.Fatalf("Run = %v, %v; want nil, nil", cfg, err)
	}
	data, _ := os.ReadFile(cfgPath)
	if string(data) != "api_base_url: http://old\n" {
		t.Errorf("config was modified: %q", data)
	}
}
