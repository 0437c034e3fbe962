package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rosterrecon/internal/adapters/httpapi"
	"rosterrecon/internal/bootstrap"
	"rosterrecon/internal/bootstrap/logging"
	"rosterrecon/internal/errs"
	"rosterrecon/internal/usecase/orphan"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the orphaned record HTTP API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *orphan.Service) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}
		retryEvery, _ := cmd.Flags().GetDuration("retry-interval")
		retryLimit, _ := cmd.Flags().GetInt("retry-limit")

		if retryEvery > 0 {
			go retryLoop(ctx, svc, retryEvery, retryLimit)
		}

		logging.Info(ctx, "http api listening", slog.String("addr", addr))
		if err := httpapi.Run(ctx, addr, httpapi.NewHandler(svc).Routes()); err != nil {
			logging.Error(ctx, "http api stopped", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve http api")
		}
		logging.Info(ctx, "http api shut down")
		return nil
	}),
}

// retryLoop drains failed reingest intents until ctx is canceled.
func retryLoop(ctx context.Context, svc *orphan.Service, every time.Duration, limit int) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.RetryPendingReingests(ctx, limit); err != nil {
				logging.Warn(ctx, "reingest retry pass failed", slog.Any("err", errs.Loggable(err)))
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (defaults to http.addr)")
	serveCmd.Flags().Duration("retry-interval", time.Minute, "Interval between reingest retry passes (zero disables)")
	serveCmd.Flags().Int("retry-limit", 50, "Max intents retried per pass")
}
