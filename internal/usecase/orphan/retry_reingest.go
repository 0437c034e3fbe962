package orphan

import (
	"context"
	"errors"
	"log/slog"

	"rosterrecon/internal/bootstrap/logging"
	domainorphan "rosterrecon/internal/domain/orphan"
	"rosterrecon/internal/errs"
)

// RetryPendingReingests re-drives reingestion for resolutions whose intent was
// never confirmed, either because the call failed or the process stopped
// between commit and reingestion. Intents touched within retryAfter are skipped.
func (s *Service) RetryPendingReingests(ctx context.Context, limit int) (RetryReingestResult, error) {
	if err := checkContext(ctx); err != nil {
		return RetryReingestResult{}, err
	}
	if s.repo == nil {
		return RetryReingestResult{}, errors.New("orphan repository is required")
	}
	if s.reingester == nil {
		return RetryReingestResult{}, errors.New("reingester is required")
	}

	logCtx := componentContext(ctx, "orphan.reingest")
	cutoff := s.now().UTC().Add(-s.retryAfter)
	intents, err := s.repo.ListRetryableReingestIntents(ctx, cutoff, limit)
	if err != nil {
		return RetryReingestResult{}, err
	}

	var result RetryReingestResult
	for _, intent := range intents {
		if err := ctx.Err(); err != nil {
			return result, errs.Wrap(err, "check context")
		}
		result.Attempted++

		_, err := s.reingester.ReingestDocument(ctx, intent.DocumentID)
		at := s.now().UTC()
		if err != nil {
			result.Failed++
			logging.Warn(logCtx, "reingest retry failed",
				slog.Any("err", errs.Loggable(err)),
				slog.String("intent_id", intent.ID),
				slog.String("document_id", intent.DocumentID),
				slog.Int("attempts", intent.Attempts+1),
			)
			s.markIntent(logCtx, intent.ID, domainorphan.ReingestFailed, err.Error(), at)
			continue
		}

		result.Succeeded++
		s.markIntent(logCtx, intent.ID, domainorphan.ReingestSucceeded, "", at)
	}

	logging.Info(logCtx, "reingest retry finished",
		slog.Int("attempted", result.Attempted),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
	)
	return result, nil
}
