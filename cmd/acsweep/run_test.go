package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/steveyegge/acsweep/internal/config"
	"github.com/steveyegge/acsweep/internal/storage"
	"github.com/steveyegge/acsweep/internal/types"
)

func newAutocompleteServer(t *testing.T) *httptest.Server {
	t.Helper()
	responses := map[string]string{
		"a":  `{"results":["ant","ape"]}`,
		"an": `["ant"]`,
		"ap": `[{"name":"ape"}]`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := responses[r.URL.Query().Get("query")]
		if !ok {
			body = `[]`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fastConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.BaseURL = baseURL
	cfg.Alphabet = "ab"
	cfg.InterRequestDelay = 0
	cfg.RetryDelay = time.Millisecond
	cfg.ProgressInterval = 0
	cfg.Output = filepath.Join(dir, "names.json")
	cfg.ArchivePath = filepath.Join(dir, "runs.db")
	return cfg
}

func TestRunSweep(t *testing.T) {
	srv := newAutocompleteServer(t)
	cfg := fastConfig(t, srv.URL)

	var out bytes.Buffer
	result, err := runSweep(context.Background(), cfg, &out)
	if err != nil {
		t.Fatalf("runSweep failed: %v", err)
	}

	if got := strings.Join(result.Items, ","); got != "ant,ape" {
		t.Errorf("Expected items ant,ape, got %s", got)
	}
	if result.Requests != 4 {
		t.Errorf("Expected 4 requests, got %d", result.Requests)
	}

	text := out.String()
	for _, want := range []string{"=== acsweep ===", "Sweep complete", "Total names found: 2", "Saved 2 names"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, text)
		}
	}

	saved := readNames(t, cfg.Output)
	if len(saved) != 2 {
		t.Errorf("Expected 2 saved names, got %v", saved)
	}

	if _, err := os.Stat(storage.LockPath(cfg.Output)); !os.IsNotExist(err) {
		t.Errorf("Expected output lock to be released, stat err: %v", err)
	}

	archive, err := storage.NewArchive(context.Background(), &storage.Config{Path: cfg.ArchivePath})
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}
	defer archive.Close()
	runs, err := archive.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 archived run, got %d", len(runs))
	}
	if runs[0].ID != result.RunID || runs[0].Status != types.RunStatusCompleted {
		t.Errorf("Unexpected archived run: %+v", runs[0])
	}
}

func readNames(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		t.Fatalf("Failed to parse %s: %v", path, err)
	}
	return names
}

// unwritableOutput returns an output path that cannot be written: a
// directory occupies it, so the final rename fails.
func unwritableOutput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "names.json")
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	return path
}

func TestRunSweep_PersistFailureSalvagesNames(t *testing.T) {
	srv := newAutocompleteServer(t)
	cfg := fastConfig(t, srv.URL)
	cfg.Output = unwritableOutput(t)

	dir := t.TempDir()
	orig := salvageDir
	salvageDir = func() string { return dir }
	defer func() { salvageDir = orig }()

	var out bytes.Buffer
	result, err := runSweep(context.Background(), cfg, &out)
	if err != nil {
		t.Fatalf("runSweep failed: %v", err)
	}
	if result.PersistErr == nil {
		t.Fatal("Expected the configured output to fail")
	}

	salvaged := filepath.Join(dir, "acsweep-"+result.RunID+".json")
	if got := strings.Join(readNames(t, salvaged), ","); got != "ant,ape" {
		t.Errorf("Expected salvaged names ant,ape, got %s", got)
	}
	if !strings.Contains(out.String(), salvaged) {
		t.Errorf("Expected output to name the salvage file, got:\n%s", out.String())
	}
}

func TestRunSweep_PersistFailurePrintsNames(t *testing.T) {
	srv := newAutocompleteServer(t)
	cfg := fastConfig(t, srv.URL)
	cfg.Output = unwritableOutput(t)

	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write blocker: %v", err)
	}
	orig := salvageDir
	salvageDir = func() string { return blocker }
	defer func() { salvageDir = orig }()

	var out bytes.Buffer
	if _, err := runSweep(context.Background(), cfg, &out); err != nil {
		t.Fatalf("runSweep failed: %v", err)
	}

	text := out.String()
	idx := strings.Index(text, "printing them:")
	if idx < 0 {
		t.Fatalf("Expected names to be printed, got:\n%s", text)
	}
	var names []string
	if err := json.Unmarshal([]byte(text[idx+len("printing them:"):]), &names); err != nil {
		t.Fatalf("Printed names are not a JSON array: %v\n%s", err, text)
	}
	if got := strings.Join(names, ","); got != "ant,ape" {
		t.Errorf("Expected printed names ant,ape, got %s", got)
	}
}

func TestRunSweep_OutputLocked(t *testing.T) {
	srv := newAutocompleteServer(t)
	cfg := fastConfig(t, srv.URL)

	lockPath, err := storage.AcquireOutputLock(cfg.Output, "other-run")
	if err != nil {
		t.Fatalf("Failed to take lock: %v", err)
	}
	defer storage.ReleaseOutputLock(lockPath)

	_, err = runSweep(context.Background(), cfg, &bytes.Buffer{})
	if !errors.Is(err, storage.ErrLocked) {
		t.Fatalf("Expected ErrLocked, got %v", err)
	}
	if _, err := os.Stat(cfg.Output); !os.IsNotExist(err) {
		t.Errorf("Locked sweep must not write output")
	}
}

func TestRunSweep_InvalidAlphabet(t *testing.T) {
	srv := newAutocompleteServer(t)
	cfg := fastConfig(t, srv.URL)
	cfg.Alphabet = "aa"

	_, err := runSweep(context.Background(), cfg, &bytes.Buffer{})
	if err == nil {
		t.Fatal("Expected error for duplicate alphabet symbol")
	}
	if _, err := os.Stat(storage.LockPath(cfg.Output)); !os.IsNotExist(err) {
		t.Errorf("Expected output lock to be released after a seeding error")
	}
}

func TestApplyRunFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "no flags keeps config",
			args: nil,
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Workers != 1 || cfg.BaseURL != "http://localhost:8000" {
					t.Errorf("Config changed without flags: %s", cfg)
				}
			},
		},
		{
			name: "endpoint and output",
			args: []string{"--base-url=http://api.test:9000", "--alphabet=xyz", "-o", "out.json", "--archive=runs.db"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.BaseURL != "http://api.test:9000" || cfg.Alphabet != "xyz" {
					t.Errorf("Endpoint flags not applied: %s", cfg)
				}
				if cfg.Output != "out.json" || cfg.ArchivePath != "runs.db" {
					t.Errorf("Output flags not applied: %s", cfg)
				}
			},
		},
		{
			name: "preset then workers",
			args: []string{"--preset=aggressive", "--workers=2"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Preset != config.PresetAggressive {
					t.Errorf("Expected aggressive preset, got %s", cfg.Preset)
				}
				if cfg.Workers != 2 {
					t.Errorf("Explicit --workers should win over the preset, got %d", cfg.Workers)
				}
				if cfg.MaxRPS != 10 {
					t.Errorf("Expected preset MaxRPS 10, got %v", cfg.MaxRPS)
				}
			},
		},
		{
			name: "paging",
			args: []string{"--page-param=page"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.PageParam != "page" || cfg.NextPageKey != "nextPage" {
					t.Errorf("Paging flag not applied: %s", cfg)
				}
			},
		},
		{
			name:    "page param clashes with query param",
			args:    []string{"--page-param=query"},
			wantErr: true,
		},
		{
			name:    "unknown preset",
			args:    []string{"--preset=reckless"},
			wantErr: true,
		},
		{
			name:    "invalid workers",
			args:    []string{"--workers=-1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "run"}
			addRunFlags(cmd)
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("ParseFlags failed: %v", err)
			}

			cfg := config.Default()
			err := applyRunFlags(cmd, cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestRunProbe(t *testing.T) {
	srv := newAutocompleteServer(t)
	cfg := fastConfig(t, srv.URL)

	var out bytes.Buffer
	if err := runProbe(context.Background(), cfg, "a", &out); err != nil {
		t.Fatalf("runProbe failed: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"query=a",
		"Response is an object with keys: results",
		"Found 2 results in 'results' field",
		"Extracted 2 candidate items",
		"Keys:    results, suggestions, completions, data, items",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected probe output to contain %q, got:\n%s", want, text)
		}
	}
}

func TestRunProbe_Unreachable(t *testing.T) {
	srv := newAutocompleteServer(t)
	cfg := fastConfig(t, srv.URL)
	srv.Close()
	cfg.MaxAttempts = 1

	if err := runProbe(context.Background(), cfg, "a", &bytes.Buffer{}); err == nil {
		t.Fatal("Expected error probing a closed server")
	}
}

func TestNewLogger(t *testing.T) {
	quiet, err := newLogger(false)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if quiet.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected debug logging to be disabled by default")
	}

	loud, err := newLogger(true)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	if !loud.Core().Enabled(zapcore.DebugLevel) {
		t.Error("Expected debug logging with --verbose")
	}
}
