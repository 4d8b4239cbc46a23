// Command autoprof extracts galaxy surface brightness profiles.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/askiada/go-autoprof/internal/config"
	"github.com/askiada/go-autoprof/internal/logging"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	loggingType string
	logLevel    string
	logFile     string
	envFiles    []string
	trace       bool
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}
	var logCloser io.Closer

	cmd := &cobra.Command{
		Use:           "autoprof",
		Short:         "Galaxy surface photometry pipeline",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			logCloser, err = logging.Initialize(flags.loggingType, flags.logLevel, flags.logFile)
			if err != nil {
				return err
			}

			return config.LoadEnv(flags.envFiles...)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&flags.loggingType, "logging-type", logging.Tint, "logging type: json, text or tint")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", envOr("AUTOPROF_LOG_LEVEL", "info"),
		"logging level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "also write logs to this file")
	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, ".env files to load (default ./.env)")
	cmd.PersistentFlags().BoolVar(&flags.trace, "trace", false, "log a debug line for every job and step span")

	cmd.AddCommand(runCmd(flags))
	cmd.AddCommand(drawCmd(flags))

	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}
