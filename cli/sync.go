package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ytarchive"
)

var syncDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Append transcripts of new videos to the archive",
	Long: `Scan the archive, list the channel's newest candidates and append the
transcripts of those not archived yet, oldest first.

Videos without a usable transcript are reported and retried on the next
run; they do not make the command fail.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	addTargetFlags(syncCmd)
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Fetch transcripts but do not write the archive")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	res, err := ytarchive.Sync(cmd.Context(), cfg,
		ytarchive.WithLogger(logger),
		ytarchive.WithDryRun(syncDryRun),
	)
	if err != nil {
		return fmt.Errorf("sync %s: %w", cfg.ArchivePath, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Summary())
	return nil
}
