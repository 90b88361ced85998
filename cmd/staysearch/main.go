package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/staysearch/internal/config"
	logpkg "github.com/kailas-cloud/staysearch/internal/logger"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	env        string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "staysearch",
		Short:         "Question answering over short-term rental listings",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a config file (overrides --env)")
	cmd.PersistentFlags().StringVar(&flags.env, "env", "", "config environment: local, dev, prod (default $ENV or local)")

	cmd.AddCommand(
		newServeCmd(flags),
		newAskCmd(flags),
		newSearchCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// load reads the config and builds the logger. One-shot commands get the quieter CLI logger.
func (f *rootFlags) load(oneShot bool) (config.Config, *zap.Logger, error) {
	env := f.env
	if env == "" {
		env = config.GetEnv()
	}

	var (
		cfg config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	var logger *zap.Logger
	if oneShot {
		logger, err = logpkg.NewCLILogger(cfg.Logging.Level)
	} else {
		logger, err = logpkg.NewLogger(env, cfg.Logging.Level)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
