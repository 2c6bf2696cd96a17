package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/signalnine/benchshard/internal/result"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List groups and files recorded by the last shard pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			summary, err := result.ReadSummary(cfg.Results.Dir)
			if err != nil {
				return fmt.Errorf("no shard summary in %s (run shard first): %w", cfg.Results.Dir, err)
			}
			out := cmd.OutOrStdout()
			keys := make([]string, 0, len(summary.Groups))
			for k := range summary.Groups {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(out, "Groups (%s):\n", summary.StartedAt.Format("2006-01-02 15:04:05"))
			for _, k := range keys {
				files := append([]string(nil), summary.Groups[k]...)
				sort.Strings(files)
				fmt.Fprintf(out, "  - %s (%d files)\n", k, len(files))
				for _, f := range files {
					fmt.Fprintf(out, "      %s\n", f)
				}
			}
			if len(summary.Warnings) > 0 {
				fmt.Fprintln(out, "\nWarnings:")
				for _, w := range summary.Warnings {
					fmt.Fprintf(out, "  - %s: %s\n", w.Dir, w.Reason)
				}
			}
			return nil
		},
	}
}
