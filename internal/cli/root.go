// Package cli implements the adpipe command line.
package cli

import (
	"os"

	"github.com/YuminosukeSato/adpipe/config"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:           "adpipe",
	Short:         "Ad click SVC training pipeline",
	Long:          `adpipe loads the advertising CSV, preprocesses it, trains an RBF SVC, evaluates it and notifies downstream systems.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (defaults are used when empty)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads .env and the config file, then installs logging.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if isDebug {
		cfg.Log.Level = "debug"
	}
	if err := log.SetupLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	installWarningLogger()
	return cfg, nil
}

// installWarningLogger routes ConvergenceWarning and friends to a zerolog
// console writer on stderr.
func installWarningLogger() {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	errors.SetZerologWarnFunc(func(w error) {
		event := zl.Warn()
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			event = event.EmbedObject(m)
		}
		event.Msg(w.Error())
	})
}
