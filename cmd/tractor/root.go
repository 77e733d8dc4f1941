package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vsariola/tractor"
	"github.com/vsariola/tractor/config"
	"github.com/vsariola/tractor/logger"
)

var (
	envFile  string
	logLevel string

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "tractor",
	Short:         "tractor inspects, edits and plays session documents.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			cfg = config.Load(envFile)
		} else {
			cfg = config.Load()
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		var err error
		if log, err = logger.New(cfg.Log); err != nil {
			return fmt.Errorf("cannot create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "read settings from this .env file instead of ./.env")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSession reads the document at path into a new session without engines
// attached to any device.
func loadSession(path string) (*tractor.Session, *tractor.Document, error) {
	s := tractor.NewSession(nil, nil, log)
	doc := tractor.NewDocument(path, log)
	if err := doc.Load(s); err != nil {
		return nil, nil, fmt.Errorf("cannot load %s: %w", path, err)
	}
	return s, doc, nil
}
