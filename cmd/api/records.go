package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/empleaido-factory/internal/app"
	"github.com/PratikDhanave/empleaido-factory/internal/config"
	"github.com/PratikDhanave/empleaido-factory/internal/factory"
)

var listJSON bool

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage empleaido records without the HTTP server",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every record",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRecords(cmd.Context(), func(ctx context.Context, svc *factory.Service) error {
			records, err := svc.List(ctx)
			if err != nil {
				return fmt.Errorf("listing records: %w", err)
			}

			out := cmd.OutOrStdout()
			if listJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			for _, r := range records {
				state := "draft"
				if r.Deployed {
					state = "deployed"
				}
				fmt.Fprintf(out, "%s  %-20s %-20s %s  [%s]\n", r.ID, r.Name, r.Role, state, strings.Join(r.SefirotActivation, ","))
			}
			return nil
		})
	},
}

var recordsDeployCmd = &cobra.Command{
	Use:   "deploy [id]",
	Short: "Publish a record as an OpenClaw skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRecords(cmd.Context(), func(ctx context.Context, svc *factory.Service) error {
			rec, path, err := svc.Deploy(ctx, args[0])
			if err != nil {
				return fmt.Errorf("deploying %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Empleaido %s deployed: %s\n", rec.Name, path)
			return nil
		})
	},
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a record and its published skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRecords(cmd.Context(), func(ctx context.Context, svc *factory.Service) error {
			rec, err := svc.Delete(ctx, args[0])
			if err != nil {
				return fmt.Errorf("deleting %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Empleaido deleted: %s (%s)\n", rec.Name, rec.ID)
			return nil
		})
	},
}

func withRecords(parent context.Context, fn func(ctx context.Context, svc *factory.Service) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	svc, st, err := app.OpenRecords(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("close store", "error", err)
		}
	}()
	return fn(ctx, svc)
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsDeployCmd, recordsDeleteCmd)
	recordsListCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
}
