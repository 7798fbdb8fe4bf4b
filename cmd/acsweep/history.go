package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/acsweep/internal/config"
	"github.com/steveyegge/acsweep/internal/storage"
	"github.com/steveyegge/acsweep/internal/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived sweeps, newest first",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		path, _ := cmd.Flags().GetString("archive")
		if path == "" {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			path = cfg.ArchivePath
		}
		if path == "" {
			path = storage.DefaultConfig().Path
		}

		if err := showHistory(context.Background(), path, limit, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	historyCmd.Flags().String("archive", "", "SQLite archive file (defaults to archive_path from config)")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show (0 = all)")
	rootCmd.AddCommand(historyCmd)
}

func showHistory(ctx context.Context, path string, limit int, out io.Writer) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no run archive at %s", path)
	}
	archive, err := storage.NewArchive(ctx, &storage.Config{Path: path})
	if err != nil {
		return fmt.Errorf("opening run archive: %w", err)
	}
	defer archive.Close()

	runs, err := archive.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Fprintf(out, "\n%s\n", cyan("=== Sweep History ==="))
	if len(runs) == 0 {
		fmt.Fprintf(out, "  %s\n", gray("No runs recorded"))
		return nil
	}
	for _, run := range runs {
		printRun(out, run)
	}
	return nil
}

func printRun(out io.Writer, run *types.Run) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	statusColor := gray
	statusIcon := "○"
	switch run.Status {
	case types.RunStatusCompleted:
		statusColor = green
		statusIcon = "●"
	case types.RunStatusCancelled:
		statusColor = yellow
		statusIcon = "◐"
	}
	if run.PersistError != "" {
		statusColor = red
		statusIcon = "✗"
	}

	fmt.Fprintf(out, "  %s %s %s\n", statusColor(statusIcon), run.ID, statusColor(string(run.Status)))
	fmt.Fprintf(out, "    Endpoint: %s (alphabet %q, %d workers)\n", run.BaseURL, run.Alphabet, run.Workers)
	fmt.Fprintf(out, "    Started:  %s", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(out, " (%v)", run.Duration().Round(time.Second))
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "    Names:    %d from %d requests (%d attempts), %d failed prefixes\n",
		run.Discovered, run.Requests, run.Attempts, run.Failed)
	if run.PersistError != "" {
		fmt.Fprintf(out, "    Output:   %s\n", red("not saved: "+run.PersistError))
	} else if run.Output != "" {
		fmt.Fprintf(out, "    Output:   %s\n", run.Output)
	}
	fmt.Fprintln(out)
}
