package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/benchshard/internal/plot"
	"github.com/signalnine/benchshard/internal/publish"
)

var (
	flagBucket string
	flagPrefix string
)

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Upload the results tree to OCI Object Storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if flagBucket != "" {
				cfg.Publish.Bucket = flagBucket
			}
			if flagPrefix != "" {
				cfg.Publish.Prefix = flagPrefix
			}

			roots := []string{cfg.Results.Dir}
			if cfg.Publish.IncludeFigures {
				figures := plot.OutputDir(cfg.Plot.OutDir, cfg.Plot.Experiment)
				if _, err := os.Stat(figures); err == nil {
					roots = append(roots, figures)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("checking figures dir: %w", err)
				} else {
					logger.Warn("figures dir missing, not publishing it", zap.String("dir", figures))
				}
			}

			store, err := publish.NewClient(cfg.Publish)
			if err != nil {
				return err
			}
			pub := publish.New(store, publish.Options{
				Bucket:      cfg.Publish.Bucket,
				Namespace:   cfg.Publish.Namespace,
				Prefix:      cfg.Publish.Prefix,
				Concurrency: cfg.Publish.Concurrency,
				RateLimit:   cfg.Publish.RateLimit,
				Progress:    cmd.OutOrStdout(),
				Logger:      logger,
			})
			rep, err := pub.Publish(cmd.Context(), roots...)
			if rep != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %d objects (%d bytes) to %s/%s\n",
					len(rep.Objects), rep.Bytes, rep.Namespace, cfg.Publish.Bucket)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&flagBucket, "bucket", "", "destination bucket (overrides publish.bucket)")
	cmd.Flags().StringVar(&flagPrefix, "prefix", "", "object name prefix (overrides publish.prefix)")
	return cmd
}
