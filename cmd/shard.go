package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/benchshard/internal/config"
	"github.com/signalnine/benchshard/internal/plot"
	"github.com/signalnine/benchshard/internal/result"
	"github.com/signalnine/benchshard/internal/shard"
)

var flagNoPlot bool

func newShardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shard",
		Short: "Group run directories by backend and scenario, then plot",
		RunE:  runShard,
	}
	cmd.Flags().BoolVar(&flagNoPlot, "no-plot", false, "skip the plotting step")
	return cmd
}

func runShard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	summary, err := shardOnce(cmd.Context(), cfg, out)
	if err != nil {
		return err
	}
	printSummary(out, summary)
	if flagNoPlot {
		return nil
	}
	return plotResults(cmd.Context(), cfg, out)
}

func shardOnce(ctx context.Context, cfg *config.Config, out io.Writer) (*result.Summary, error) {
	s := shard.New(shard.Options{
		SourceDir:     cfg.Source.Dir,
		ResultsDir:    cfg.Results.Dir,
		MetadataFile:  cfg.Source.MetadataFile,
		ResultPattern: cfg.Source.ResultPattern,
		SkipInvalid:   cfg.Shard.SkipInvalid,
		Out:           out,
		Logger:        logger,
	})
	summary, err := s.Run(ctx)
	if err != nil {
		return nil, err
	}
	if err := result.WriteSummary(cfg.Results.Dir, summary); err != nil {
		return nil, err
	}
	return summary, nil
}

func printSummary(w io.Writer, s *result.Summary) {
	fmt.Fprintf(w, "Sharded %d of %d directories (%d files) into %d groups under %s\n",
		s.DirsSharded, s.DirsScanned, s.FilesCopied, len(s.Groups), s.ResultsDir)
	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "  WARNING: %s -> %s: %s\n", warn.Dir, warn.Key, warn.Reason)
	}
}

// plotResults runs the configured plotter; failures come back as *plot.Error.
func plotResults(ctx context.Context, cfg *config.Config, out io.Writer) error {
	p, err := plot.New(cfg, cfg.Results.Dir, out, logger)
	if err != nil {
		return &plot.Error{Mode: cfg.Plot.Mode, ExitCode: -1, Err: err}
	}
	fmt.Fprintf(out, "Plotting %s (%s)...\n", cfg.Results.Dir, cfg.Plot.Mode)
	if err := plot.Run(ctx, cfg.Plot.Mode, p); err != nil {
		logger.Error("plotting failed", zap.String("mode", cfg.Plot.Mode), zap.Error(err))
		return err
	}
	fmt.Fprintln(out, "Plotting complete")
	return nil
}
