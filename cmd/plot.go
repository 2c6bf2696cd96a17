package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagPlotMode       string
	flagPlotExperiment string
)

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render charts from an already sharded results tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if flagPlotMode != "" {
				cfg.Plot.Mode = flagPlotMode
			}
			if flagPlotExperiment != "" {
				cfg.Plot.Experiment = flagPlotExperiment
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return plotResults(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flagPlotMode, "mode", "", "plotter to use (native, exec, docker)")
	cmd.Flags().StringVar(&flagPlotExperiment, "experiment", "", "experiment name for chart titles and figures/<name>")
	return cmd
}
