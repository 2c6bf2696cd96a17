package cmd

import (
	"github.com/spf13/cobra"

	"github.com/signalnine/benchshard/internal/report"
)

var flagFormat string

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [results-dir]",
		Short: "Summarise each group in the results tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			resultsDir := cfg.Results.Dir
			if len(args) > 0 {
				resultsDir = args[0]
			}
			return report.Generate(resultsDir, flagFormat, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}
