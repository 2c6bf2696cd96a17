package cmd

import (
	"errors"
	"io/fs"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/signalnine/benchshard/internal/config"
	"github.com/signalnine/benchshard/internal/logging"
)

var (
	cfgFile     string
	flagVerbose bool
	flagSource  string
	flagResults string

	logger = zap.NewNop()
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "benchshard",
		Short:        "Shard, plot and publish genai-bench results",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logging.New(flagVerbose)
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "benchshard.yaml", "config file path")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&flagSource, "source", "", "source tree written by genai-bench (overrides source.dir)")
	root.PersistentFlags().StringVar(&flagResults, "results", "", "sharded results root (overrides results.dir)")
	root.AddCommand(newShardCmd())
	root.AddCommand(newPlotCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newPublishCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newListCmd())
	return root
}

// loadConfig reads --config, falling back to defaults when the default file
// is absent, and applies the directory overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, err
		}
		logger.Debug("no config file, using defaults", zap.String("config", cfgFile))
		cfg = config.Default()
	}
	if flagSource != "" {
		cfg.Source.Dir = flagSource
	}
	if flagResults != "" {
		cfg.Results.Dir = flagResults
	}
	return cfg, nil
}
