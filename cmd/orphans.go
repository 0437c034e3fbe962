package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"rosterrecon/internal/bootstrap"
	"rosterrecon/internal/bootstrap/logging"
	"rosterrecon/internal/errs"
	"rosterrecon/internal/ports"
	"rosterrecon/internal/usecase/orphan"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "Triage and resolve orphaned check-in records",
}

var orphansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orphan groups visible to a user in an org",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *orphan.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		userID, _ := cmd.Flags().GetString("user")
		orgID, _ := cmd.Flags().GetUint64("org")
		items, err := svc.ListVisible(ctx, orphan.ListVisibleInput{UserID: userID, OrgID: orgID})
		if err != nil {
			logging.Error(ctx, "list orphans failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list orphans")
		}
		if items == nil {
			items = []ports.VisibleOrphan{}
		}
		return printJSON(cmd, items)
	}),
}

var orphansAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a check-in that did not match any roster",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *orphan.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		input := orphan.AddRecordInput{}
		input.DocumentID, _ = cmd.Flags().GetString("document")
		input.Timestamp, _ = cmd.Flags().GetString("timestamp")
		input.EDIPI, _ = cmd.Flags().GetString("edipi")
		input.Phone, _ = cmd.Flags().GetString("phone")
		input.Unit, _ = cmd.Flags().GetString("unit")
		input.ReportingGroup, _ = cmd.Flags().GetString("reporting-group")
		input.CompositeID, _ = cmd.Flags().GetString("composite")
		if input.Timestamp == "" {
			input.Timestamp = time.Now().UTC().Format(time.RFC3339)
		}

		result, err := svc.AddRecord(ctx, input)
		if err != nil {
			logging.Error(ctx, "add orphaned record failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "add orphaned record")
		}
		return printJSON(cmd, result)
	}),
}

var orphansDeleteCmd = &cobra.Command{
	Use:   "delete <composite-id>",
	Short: "Retire every live record of an orphan group",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *orphan.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		compositeID := cmd.Flags().Arg(0)
		orgID, _ := cmd.Flags().GetUint64("org")
		if err := svc.DeleteRecord(ctx, orgID, compositeID); err != nil {
			logging.Error(ctx, "delete orphan group failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "delete orphan group")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deleted orphan group: %s\n", compositeID); err != nil {
			return errs.Wrap(err, "write delete output")
		}
		return nil
	}),
}

var orphansClaimCmd = &cobra.Command{
	Use:   "claim <composite-id>",
	Short: "Claim an orphan group, hiding it from everyone else",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(setActionRun("claim")),
}

var orphansIgnoreCmd = &cobra.Command{
	Use:   "ignore <composite-id>",
	Short: "Ignore an orphan group for yourself only",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(setActionRun("ignore")),
}

var orphansClearCmd = &cobra.Command{
	Use:   "clear <composite-id>",
	Short: "Remove your claim or ignore from an orphan group",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *orphan.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		compositeID := cmd.Flags().Arg(0)
		userID, _ := cmd.Flags().GetString("user")
		actionType, _ := cmd.Flags().GetString("action")
		if err := svc.ClearAction(ctx, orphan.ClearActionInput{
			CompositeID: compositeID,
			UserID:      userID,
			Type:        actionType,
		}); err != nil {
			logging.Error(ctx, "clear orphan action failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "clear orphan action")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "cleared %s on %s for %s\n", actionType, compositeID, userID); err != nil {
			return errs.Wrap(err, "write clear output")
		}
		return nil
	}),
}

var orphansResolveCmd = &cobra.Command{
	Use:   "resolve <composite-id>",
	Short: "Attach an orphan group to a roster and reingest its record",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *orphan.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		orgID, _ := cmd.Flags().GetUint64("org")
		role, _ := cmd.Flags().GetString("role")
		input := orphan.ResolveInput{
			CompositeID: cmd.Flags().Arg(0),
			OrgID:       orgID,
			Role:        role,
		}
		if cmd.Flags().Changed("unit") {
			unitID, _ := cmd.Flags().GetUint64("unit")
			input.Unit = &unitID
			input.Entry.UnitID = unitID
		}
		input.Entry.EDIPI, _ = cmd.Flags().GetString("edipi")
		input.Entry.FirstName, _ = cmd.Flags().GetString("first-name")
		input.Entry.LastName, _ = cmd.Flags().GetString("last-name")
		input.Entry.Phone, _ = cmd.Flags().GetString("phone")

		result, err := svc.Resolve(ctx, input)
		if err != nil {
			logging.Error(ctx, "resolve orphan group failed", slog.Any("err", errs.Loggable(err)))
			if len(result.Items) > 0 {
				_ = printJSON(cmd, result)
			}
			return errs.Wrap(err, "resolve orphan group")
		}
		return printJSON(cmd, result)
	}),
}

func setActionRun(actionType string) func(cmd *cobra.Command, _ *bootstrap.App, svc *orphan.Service) error {
	return func(cmd *cobra.Command, _ *bootstrap.App, svc *orphan.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		userID, _ := cmd.Flags().GetString("user")
		orgID, _ := cmd.Flags().GetUint64("org")
		input := orphan.SetActionInput{
			CompositeID: cmd.Flags().Arg(0),
			OrgID:       orgID,
			UserID:      userID,
			Type:        actionType,
		}
		if cmd.Flags().Changed("ttl") {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			input.TTL = &ttl
		}

		action, err := svc.SetAction(ctx, input)
		if err != nil {
			logging.Error(ctx, "set orphan action failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrapf(err, "%s orphan group", actionType)
		}
		return printJSON(cmd, action)
	}
}

func printJSON(cmd *cobra.Command, payload any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return errs.Wrap(err, "write json output")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(orphansCmd)
	orphansCmd.AddCommand(orphansListCmd)
	orphansCmd.AddCommand(orphansAddCmd)
	orphansCmd.AddCommand(orphansDeleteCmd)
	orphansCmd.AddCommand(orphansClaimCmd)
	orphansCmd.AddCommand(orphansIgnoreCmd)
	orphansCmd.AddCommand(orphansClearCmd)
	orphansCmd.AddCommand(orphansResolveCmd)

	orphansListCmd.Flags().String("user", "", "Requesting user id")
	orphansListCmd.Flags().Uint64("org", 0, "Org id")
	_ = orphansListCmd.MarkFlagRequired("user")
	_ = orphansListCmd.MarkFlagRequired("org")

	orphansAddCmd.Flags().String("document", "", "Source document id")
	orphansAddCmd.Flags().String("timestamp", "", "Report time (RFC3339 or unix millis, defaults to now)")
	orphansAddCmd.Flags().String("edipi", "", "Reporter EDIPI")
	orphansAddCmd.Flags().String("phone", "", "Reporter phone number")
	orphansAddCmd.Flags().String("unit", "", "Free-text unit reported by the user")
	orphansAddCmd.Flags().String("reporting-group", "", "Reporting group of the source document")
	orphansAddCmd.Flags().String("composite", "", "Composite id (derived when empty)")
	_ = orphansAddCmd.MarkFlagRequired("document")
	_ = orphansAddCmd.MarkFlagRequired("edipi")
	_ = orphansAddCmd.MarkFlagRequired("reporting-group")

	orphansDeleteCmd.Flags().Uint64("org", 0, "Org id")
	_ = orphansDeleteCmd.MarkFlagRequired("org")

	for _, c := range []*cobra.Command{orphansClaimCmd, orphansIgnoreCmd} {
		c.Flags().String("user", "", "Acting user id")
		c.Flags().Uint64("org", 0, "Org id")
		c.Flags().Duration("ttl", 0, "Action lifetime (zero never expires)")
		_ = c.MarkFlagRequired("user")
		_ = c.MarkFlagRequired("org")
	}

	orphansClearCmd.Flags().String("user", "", "Acting user id")
	orphansClearCmd.Flags().String("action", "claim", "Action type to clear (claim or ignore)")
	_ = orphansClearCmd.MarkFlagRequired("user")

	orphansResolveCmd.Flags().Uint64("org", 0, "Org id")
	orphansResolveCmd.Flags().String("role", "", "Role of the resolving user")
	orphansResolveCmd.Flags().Uint64("unit", 0, "Roster unit to attach the record to")
	orphansResolveCmd.Flags().String("edipi", "", "EDIPI for a new roster entry (defaults to the record's)")
	orphansResolveCmd.Flags().String("first-name", "", "First name for a new roster entry")
	orphansResolveCmd.Flags().String("last-name", "", "Last name for a new roster entry")
	orphansResolveCmd.Flags().String("phone", "", "Phone for a new roster entry (defaults to the record's)")
	_ = orphansResolveCmd.MarkFlagRequired("org")
}
