package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ytarchive"
)

var scanList bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Show the video IDs already in the archive",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

func init() {
	addArchiveFlag(scanCmd)
	scanCmd.Flags().BoolVarP(&scanList, "list", "l", false, "Print every ID instead of the count")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ids, err := ytarchive.Scan(cfg.ArchivePath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if scanList {
		for _, id := range ids.Sorted() {
			fmt.Fprintln(out, id)
		}
		return nil
	}
	fmt.Fprintf(out, "%s: %d archived videos\n", cfg.ArchivePath, ids.Len())
	return nil
}
