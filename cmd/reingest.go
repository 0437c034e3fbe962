package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"rosterrecon/internal/bootstrap"
	"rosterrecon/internal/bootstrap/logging"
	"rosterrecon/internal/errs"
	"rosterrecon/internal/usecase/orphan"
)

var reingestCmd = &cobra.Command{
	Use:   "reingest",
	Short: "Inspect and retry reingestion of resolved records",
}

var reingestRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry reingestion for resolutions whose trigger failed",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc *orphan.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		limit, _ := cmd.Flags().GetInt("limit")
		result, err := svc.RetryPendingReingests(ctx, limit)
		if err != nil {
			logging.Error(ctx, "retry reingest failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "retry reingest")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"reingest retry attempted=%d succeeded=%d failed=%d\n",
			result.Attempted,
			result.Succeeded,
			result.Failed,
		); err != nil {
			return errs.Wrap(err, "write retry output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(reingestCmd)
	reingestCmd.AddCommand(reingestRetryCmd)
	reingestRetryCmd.Flags().Int("limit", 50, "Max intents to retry")
}
