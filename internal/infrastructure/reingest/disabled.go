package reingest

import (
	"context"
	"log/slog"

	"rosterrecon/internal/bootstrap/logging"
	"rosterrecon/internal/ports"
)

// Disabled accepts every request and ingests nothing. It backs the "none" transport.
type Disabled struct{}

var _ ports.Reingester = Disabled{}

func (Disabled) ReingestDocument(ctx context.Context, documentID string) (ports.ReingestResult, error) {
	logging.Info(
		logging.WithAttrs(ctx, slog.String("component", "reingest")),
		"reingest transport disabled; skipping",
		slog.String("document_id", documentID),
	)
	return ports.ReingestResult{}, nil
}
