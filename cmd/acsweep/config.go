package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/acsweep/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create or inspect the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		if err := writeExampleConfig(cfgPath, force); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Wrote %s\n", green("✓"), cfgPath)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration (file, environment and defaults)",
	Run: func(cmd *cobra.Command, args []string) {
		if err := showConfig(cfgPath, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func writeExampleConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(config.ExampleConfigFile()), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func showConfig(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Fprintf(out, "%s\n", cyan("=== Effective configuration ==="))
	fmt.Fprintf(out, "  Preset:      %s\n", cfg.Preset)
	fmt.Fprintf(out, "  Endpoint:    %s?%s=<prefix>\n", cfg.Endpoint(), cfg.Param)
	fmt.Fprintf(out, "  Alphabet:    %s\n", cfg.Alphabet)
	if cfg.PageParam != "" {
		fmt.Fprintf(out, "  Paging:      %s=<%s>, up to %d pages\n", cfg.PageParam, cfg.NextPageKey, cfg.MaxPages)
	}
	fmt.Fprintf(out, "  Pacing:      %v between requests, retry from %v", cfg.InterRequestDelay, cfg.RetryDelay)
	if cfg.MaxRetryDelay > 0 {
		fmt.Fprintf(out, " (cap %v)", cfg.MaxRetryDelay)
	}
	fmt.Fprintf(out, ", %d attempts\n", cfg.MaxAttempts)
	fmt.Fprintf(out, "  Workers:     %d (max %d in flight", cfg.Workers, cfg.InFlight())
	if cfg.MaxRPS > 0 {
		fmt.Fprintf(out, ", %.1f req/s", cfg.MaxRPS)
	}
	fmt.Fprintln(out, ")")
	if cfg.Breaker.Enabled {
		fmt.Fprintf(out, "  Breaker:     opens after %d failures for %v\n", cfg.Breaker.FailureThreshold, cfg.Breaker.OpenTimeout)
	} else {
		fmt.Fprintln(out, "  Breaker:     disabled")
	}
	fmt.Fprintf(out, "  Output:      %s\n", cfg.Output)
	if cfg.ArchivePath != "" {
		fmt.Fprintf(out, "  Archive:     %s\n", cfg.ArchivePath)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(out, "  Metrics:     %s\n", cfg.MetricsAddr)
	}
	if len(cfg.ExtraKeys) > 0 {
		fmt.Fprintf(out, "  Extra keys:  %v\n", cfg.ExtraKeys)
	}
	return nil
}
