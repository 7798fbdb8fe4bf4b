package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/acsweep/internal/config"
	"github.com/steveyegge/acsweep/internal/normalize"
	"github.com/steveyegge/acsweep/internal/oracle"
)

// maxProbeBody caps how much of the raw response is echoed.
const maxProbeBody = 500

var probeCmd = &cobra.Command{
	Use:   "probe [prefix]",
	Short: "Query one prefix and describe the response shape",
	Long: `Send a single query (default prefix "a") and report how the response
would be normalized. Use this to check an unfamiliar endpoint before a sweep.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("base-url") {
			cfg.BaseURL, _ = cmd.Flags().GetString("base-url")
		}

		prefix := "a"
		if len(args) == 1 {
			prefix = args[0]
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := runProbe(ctx, cfg, prefix, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	probeCmd.Flags().String("base-url", "", "Scheme and host of the endpoint")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(ctx context.Context, cfg *config.Config, prefix string, out io.Writer) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	oc := cfg.OracleConfig(userAgent())
	// A probe is a one-off, no pacing needed before it
	oc.InterRequestDelay = 0
	client, err := oracle.New(oc, oracle.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating client: %w", err)
	}

	res, err := client.Probe(ctx, prefix)
	if err != nil {
		return fmt.Errorf("probing %q: %w", prefix, err)
	}

	fmt.Fprintf(out, "\n%s\n", cyan("=== Probe ==="))
	fmt.Fprintf(out, "  URL:     %s\n", res.URL)
	fmt.Fprintf(out, "  Elapsed: %v\n", res.Elapsed.Round(time.Millisecond))
	body := string(res.Body)
	if len(body) > maxProbeBody {
		body = body[:maxProbeBody] + "..."
	}
	fmt.Fprintf(out, "  Body:    %s\n", gray(body))

	n := normalize.New(cfg.ExtraKeys...)
	fmt.Fprintf(out, "  Keys:    %s\n", strings.Join(n.Keys(), ", "))
	if cfg.PageParam != "" {
		if token, ok := normalize.NextPage(res.Body, cfg.NextPageKey); ok {
			fmt.Fprintf(out, "  Next:    %s=%s\n", cfg.PageParam, token)
		} else {
			fmt.Fprintf(out, "  Next:    no %q token, single page\n", cfg.NextPageKey)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, n.Describe(res.Body).String())
	return nil
}
