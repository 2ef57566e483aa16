package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/empleaido-factory/internal/config"
	"github.com/PratikDhanave/empleaido-factory/internal/models"
	"github.com/PratikDhanave/empleaido-factory/internal/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage API session tokens",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a session token for scripted API access",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		sessions := session.NewStore(cfg.SessionsFile, cfg.SessionTTL, session.WithLogger(slog.Default()))

		s, err := sessions.Create()
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.Token)
		slog.Info("session created", "expires_at", s.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), models.Version)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd, versionCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
}
