package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ytarchive"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Preview the candidates the next sync would consider",
	Long: `List the channel's newest candidates, up to --max, and whether each is
already archived. Nothing is fetched or written.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	addTargetFlags(listCmd)
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	r, err := ytarchive.NewRunner(cmd.Context(), cfg, ytarchive.WithLogger(logger))
	if err != nil {
		return err
	}
	defer r.Close()

	candidates, err := r.Manager.Preview(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(candidates) == 0 {
		fmt.Fprintln(out, "No videos found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VIDEO ID\tSTATUS\tPUBLISHED\tTITLE")
	fresh := 0
	for _, c := range candidates {
		status := "archived"
		if !c.Archived {
			status = "new"
			fresh++
		}
		published := ""
		if !c.Video.Published.IsZero() {
			published = c.Video.Published.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Video.ID, status, published, truncate(c.Video.Title, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "\nTotal: %d candidates, %d new\n", len(candidates), fresh)
	return nil
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
