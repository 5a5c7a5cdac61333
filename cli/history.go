package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ytarchive/internal/ledger"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync runs from the ledger",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.LedgerPath == "" {
		return errors.New("the ledger is disabled (ledger_path is empty)")
	}
	store, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded. Run 'ytarchive sync' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tSEEN\tSKIPPED\tAPPENDED\tFAILED\tSOURCE\tRUN ID")
	for _, r := range runs {
		status := r.Status
		if r.DryRun {
			status += " (dry run)"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), status,
			r.Seen, r.Skipped, r.Appended, len(r.Failures), r.Source, r.ID)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, r := range runs {
		for _, f := range r.Failures {
			fmt.Fprintf(out, "  %s ! %s %q: %s\n", shortID(r.ID), f.VideoID, f.Title, f.Reason)
		}
		if r.Error != "" {
			fmt.Fprintf(out, "  %s error: %s\n", shortID(r.ID), r.Error)
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
