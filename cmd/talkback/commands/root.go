// Package commands implements the talkback CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/ayusha001100/talkback/internal/log"
)

// Set at build time with -ldflags "-X .../commands.Version=...".
var Version = "dev"

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "talkback",
	Short: "Push-to-talk voice assistant",
	Long: `talkback runs a voice conversation pipeline: an uploaded clip is
transcribed, answered by a language model and spoken back.

  talkback serve   run the HTTP API
  talkback talk    record from the microphone and play replies`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initLogging sets up the global logger. Flags given on the command line win
// over the configured values.
func initLogging(cmd *cobra.Command, level, format string) {
	if cmd.Flags().Changed("log-level") || level == "" {
		level = logLevel
	}
	if cmd.Flags().Changed("log-format") || format == "" {
		format = logFormat
	}
	log.Init(level, format)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(talkCmd)
	rootCmd.AddCommand(versionCmd)
}
