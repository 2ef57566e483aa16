package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/empleaido-factory/internal/config"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:          "empleaido",
	SilenceUsage: true,
	Short:        "Empleaido Factory: create, deploy and transcribe for OpenClaw agents",
	Long: `Empleaido Factory keeps a collection of agent definitions, publishes them
as OpenClaw skills and transcribes voice notes for them.

Configuration is read from the environment (STORE_BACKEND, DATA_FILE,
SKILLS_DIR, RATE_LIMIT_BACKEND, ...).`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel()})))
	},
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func logLevel() slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func mustConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal("Error loading configuration", err)
	}
	return cfg
}
