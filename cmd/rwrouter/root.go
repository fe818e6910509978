package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nedscode/rwrouter/config"
)

type rootFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "rwrouter",
		Short:         "Inspect a primary/replica cluster through the read/write router",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "path to the cluster YAML configuration")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the configuration")
	cmd.PersistentFlags().BoolVar(&f.logJSON, "log-json", false, "log as JSON")

	cmd.AddCommand(newCheckCmd(f), newRouteCmd(f))
	return cmd
}

// load reads the configuration and builds the logger it describes
func (f *rootFlags) load(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = f.logJSON
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(cfg config.Log) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})
	if cfg.JSON {
		logger.SetFormatter(log.JSONFormatter)
	}
	return logger, nil
}
