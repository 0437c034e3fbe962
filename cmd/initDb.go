/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"rosterrecon/internal/bootstrap"
	"rosterrecon/internal/bootstrap/logging"
	"rosterrecon/internal/errs"
	"rosterrecon/internal/usecase/orphan"
)

// initDbCmd represents the initDb command
var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize database schema",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *orphan.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		if err := app.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		logging.Info(ctx, "init-db finished", slog.String("database_dsn", app.Config.Database.DSN))
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema initialized: %s\n", app.Config.Database.DSN); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

var seedOrgCmd = &cobra.Command{
	Use:   "seed-org",
	Short: "Register an org and its units for record intake",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *orphan.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		name, _ := cmd.Flags().GetString("name")
		group, _ := cmd.Flags().GetString("reporting-group")
		units, _ := cmd.Flags().GetStringSlice("unit")

		org, unitIDs, err := app.SeedOrg(ctx, name, group, units)
		if err != nil {
			logging.Error(ctx, "seed org failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "seed org")
		}

		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "org %d: %s (%s)\n", org.ID, org.Name, org.ReportingGroup); err != nil {
			return errs.Wrap(err, "write seed-org output")
		}
		names := make([]string, 0, len(unitIDs))
		for unitName := range unitIDs {
			names = append(names, unitName)
		}
		sort.Strings(names)
		for _, unitName := range names {
			if _, err := fmt.Fprintf(out, "  unit %d: %s\n", unitIDs[unitName], unitName); err != nil {
				return errs.Wrap(err, "write seed-org output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
	rootCmd.AddCommand(seedOrgCmd)

	seedOrgCmd.Flags().String("name", "", "Org display name (defaults to the reporting group)")
	seedOrgCmd.Flags().String("reporting-group", "", "Reporting group that routes records to the org")
	seedOrgCmd.Flags().StringSlice("unit", nil, "Unit name to ensure (repeatable)")
	_ = seedOrgCmd.MarkFlagRequired("reporting-group")
}
