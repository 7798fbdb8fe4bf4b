package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/steveyegge/acsweep/internal/config"
	"github.com/steveyegge/acsweep/internal/discovery"
	"github.com/steveyegge/acsweep/internal/events"
	"github.com/steveyegge/acsweep/internal/metrics"
	"github.com/steveyegge/acsweep/internal/oracle"
	"github.com/steveyegge/acsweep/internal/storage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sweep the endpoint until no unqueried prefix remains",
	Long: `Run a full sweep against the configured autocomplete endpoint.

The sweep will:
1. Seed one prefix per alphabet symbol
2. Query each prefix, pacing requests and backing off when throttled
3. Queue prefix+next-character for every new item returned
4. Stop when the queue is empty, or on Ctrl+C
5. Write every discovered item, in discovery order, to the output file

Partial results are still written when the sweep is interrupted.

Presets:
- gentle:     slow pacing, long backoff, for services that throttle early
- standard:   1.2s between requests, one worker
- aggressive: 4 workers under a 10 requests/second ceiling

Examples:
  acsweep run                                   # Sweep with acsweep.yaml or defaults
  acsweep run --base-url http://api.local:8000  # Sweep another host
  acsweep run --preset gentle --alphabet abc    # Slow sweep of a small alphabet
  acsweep run --workers 4 --metrics-addr :9090  # Parallel sweep with /metrics`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := applyRunFlags(cmd, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := runSweep(ctx, cfg, os.Stdout)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if result.PersistErr != nil {
			// The items were salvaged, but the configured output is stale
			os.Exit(1)
		}
	},
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("preset", "", "Preset: gentle, standard, or aggressive (overrides pacing from the config file)")
	cmd.Flags().String("base-url", "", "Scheme and host of the endpoint")
	cmd.Flags().String("alphabet", "", "Symbols seeding the sweep")
	cmd.Flags().IntP("workers", "w", 0, "Number of concurrent workers")
	cmd.Flags().StringP("output", "o", "", "JSON file receiving the discovered items")
	cmd.Flags().String("archive", "", "SQLite file recording the run history")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().Int("max-prefix-len", 0, "Do not derive prefixes longer than this (0 = unlimited)")
	cmd.Flags().String("page-param", "", "Query parameter for follow-up pages (empty = no paging)")
}

// applyRunFlags layers explicitly set flags over cfg and validates the result.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("preset") {
		name, _ := flags.GetString("preset")
		if err := applyPreset(cfg, config.Preset(name)); err != nil {
			return err
		}
	}
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("alphabet") {
		cfg.Alphabet, _ = flags.GetString("alphabet")
	}
	if flags.Changed("workers") {
		cfg.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("output") {
		cfg.Output, _ = flags.GetString("output")
	}
	if flags.Changed("archive") {
		cfg.ArchivePath, _ = flags.GetString("archive")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("max-prefix-len") {
		cfg.MaxPrefixLen, _ = flags.GetInt("max-prefix-len")
	}
	if flags.Changed("page-param") {
		cfg.PageParam, _ = flags.GetString("page-param")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyPreset replaces the pacing, retry and concurrency settings of cfg
// with those of the preset. Endpoint and output settings are kept.
func applyPreset(cfg *config.Config, p config.Preset) error {
	switch p {
	case config.PresetGentle, config.PresetStandard, config.PresetAggressive:
	default:
		return fmt.Errorf("unknown preset %q (want gentle, standard, or aggressive)", p)
	}
	base := config.PresetConfig(p)
	cfg.Preset = base.Preset
	cfg.InterRequestDelay = base.InterRequestDelay
	cfg.RetryDelay = base.RetryDelay
	cfg.MaxRetryDelay = base.MaxRetryDelay
	cfg.MaxAttempts = base.MaxAttempts
	cfg.MaxRPS = base.MaxRPS
	cfg.Workers = base.Workers
	cfg.Breaker = base.Breaker
	return nil
}

// runSweep wires the client, metrics, archive and orchestrator for one run
// and prints its summary to out.
func runSweep(ctx context.Context, cfg *config.Config, out io.Writer) (*discovery.Result, error) {
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	runID := uuid.New().String()

	if cfg.Output != "" {
		lockPath, err := storage.AcquireOutputLock(cfg.Output, runID)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := storage.ReleaseOutputLock(lockPath); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to release output lock: %v\n", err)
			}
		}()
	}

	m := metrics.New()
	sink := events.Multi(events.NewLogSink(logger), m)

	if cfg.MetricsAddr != "" {
		metricsCtx, stopMetrics := context.WithCancel(context.Background())
		served := make(chan struct{})
		go func() {
			defer close(served)
			if err := m.Serve(metricsCtx, cfg.MetricsAddr, logger); err != nil {
				logger.Warn("metrics endpoint stopped", zap.Error(err))
			}
		}()
		defer func() {
			stopMetrics()
			<-served
		}()
	}

	client, err := oracle.New(cfg.OracleConfig(userAgent()),
		oracle.WithLogger(logger),
		oracle.WithEvents(runID, sink))
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	opts := []discovery.Option{
		discovery.WithRunID(runID),
		discovery.WithLogger(logger),
		discovery.WithEvents(sink),
	}
	if cfg.ArchivePath != "" {
		archive, err := storage.NewArchive(ctx, &storage.Config{Path: cfg.ArchivePath})
		if err != nil {
			return nil, fmt.Errorf("opening run archive: %w", err)
		}
		defer archive.Close()
		opts = append(opts, discovery.WithArchive(archive))
	}

	fmt.Fprintf(out, "\n%s\n", cyan("=== acsweep ==="))
	fmt.Fprintf(out, "  Endpoint: %s?%s=<prefix>\n", cfg.Endpoint(), cfg.Param)
	fmt.Fprintf(out, "  Alphabet: %s\n", cfg.Alphabet)
	fmt.Fprintf(out, "  Workers:  %d (preset %s)\n", cfg.Workers, cfg.Preset)
	fmt.Fprintf(out, "  Run:      %s\n", gray(runID))
	fmt.Fprintf(out, "  Press Ctrl+C to stop and save partial results\n\n")

	orch := discovery.NewOrchestrator(client, cfg, opts...)
	result, err := orch.Run(ctx)
	if err != nil {
		return nil, err
	}
	if result.PersistErr != nil {
		// One more try before falling back
		_ = orch.Persist(context.WithoutCancel(ctx), result)
	}

	printSummary(out, result)
	switch {
	case result.PersistErr != nil:
		salvage(out, result)
	case result.Output != "":
		fmt.Fprintf(out, "%s Saved %d names to %s\n", green("✓"), len(result.Items), result.Output)
	}
	return result, nil
}

// salvageDir is where items go when the output file cannot be written.
var salvageDir = os.TempDir

// salvage keeps the items of a run whose output could not be written: in a
// file under salvageDir named after the run, or printed to out as a JSON
// array when that fails too.
func salvage(out io.Writer, result *discovery.Result) {
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	path := filepath.Join(salvageDir(), "acsweep-"+result.RunID+".json")
	err := storage.WriteJSONFile(path, result.Items)
	if err == nil {
		logger.Warn("output salvaged",
			zap.String("output", result.Output),
			zap.String("salvaged", path))
		fmt.Fprintf(out, "%s Saved %d names to %s instead\n", yellow("⚠"), len(result.Items), path)
		return
	}

	logger.Error("failed to salvage output", zap.String("salvage", path), zap.Error(err))
	fmt.Fprintf(out, "%s Could not save names anywhere, printing them:\n", red("✗"))
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	items := result.Items
	if items == nil {
		items = []string{}
	}
	_ = enc.Encode(items)
}

// printSummary prints the run summary, colored by outcome.
func printSummary(out io.Writer, result *discovery.Result) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	header := green("=== Sweep complete ===")
	if result.Cancelled {
		header = yellow("=== Sweep interrupted ===")
	}
	fmt.Fprintf(out, "\n%s\n", header)
	fmt.Fprintln(out, result.Summary())

	if n := len(result.Failed); n > 0 {
		fmt.Fprintf(out, "%s %d prefixes yielded nothing after exhausting retries\n", yellow("⚠"), n)
	}
	if result.PersistErr != nil {
		fmt.Fprintf(out, "%s Results were not saved: %v\n", red("✗"), result.PersistErr)
	}
}
