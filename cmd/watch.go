package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/benchshard/internal/watch"
)

var flagWatchPlot bool

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-shard whenever genai-bench writes new runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			w, err := watch.New(watch.Options{
				SourceDir:     cfg.Source.Dir,
				ResultsDir:    cfg.Results.Dir,
				MetadataFile:  cfg.Source.MetadataFile,
				ResultPattern: cfg.Source.ResultPattern,
				Debounce:      cfg.Watch.Debounce,
				RunOnStart:    true,
				Logger:        logger,
			}, func(ctx context.Context) error {
				summary, err := shardOnce(ctx, cfg, out)
				if err != nil {
					return err
				}
				printSummary(out, summary)
				if !flagWatchPlot {
					return nil
				}
				return plotResults(ctx, cfg, out)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Watching %s (debounce %s)\n", cfg.Source.Dir, cfg.Watch.Debounce)
			logger.Info("watch started", zap.String("source", cfg.Source.Dir))
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&flagWatchPlot, "plot", false, "plot after each re-shard")
	return cmd
}
