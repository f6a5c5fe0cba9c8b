package main

import (
	"context"
	"fmt"

	"helpdesk_backend/internal/bootstrap"
	"helpdesk_backend/platform/db"

	"github.com/spf13/cobra"
)

func newSLACommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sla",
		Short: "SLA monitoring tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "scan",
		Short: "Flag tickets nearing or past their due date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, func(ctx context.Context, svc *bootstrap.Services) (any, error) {
				return svc.SLA.Scan(ctx)
			})
		},
	})
	return cmd
}

func newReportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Organization report tools",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Send the previous day's report to every organization",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, func(ctx context.Context, svc *bootstrap.Services) (any, error) {
				return svc.Reports.Run(ctx)
			})
		},
	})
	return cmd
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				e, err := openEnv(cmd.Context())
				if err != nil {
					return err
				}
				defer e.Close()
				if err := db.RunMigrations(cmd.Context(), e.pool); err != nil {
					return err
				}
				return printVersion(cmd, e)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				e, err := openEnv(cmd.Context())
				if err != nil {
					return err
				}
				defer e.Close()
				return printVersion(cmd, e)
			},
		},
	)
	return cmd
}

func printVersion(cmd *cobra.Command, e *env) error {
	version, err := db.MigrationVersion(cmd.Context(), e.pool)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), map[string]int64{"version": version})
}
