package orphan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rosterrecon/internal/bootstrap/logging"
	domainorphan "rosterrecon/internal/domain/orphan"
	"rosterrecon/internal/errs"
	"rosterrecon/internal/ports"
)

type committedResolution struct {
	record   ports.OrphanedRecord
	intentID string
}

// Resolve folds an orphan group into roster history.
//
// Matching history rows are backdated to the group's earliest report, the
// group is soft-deleted and its actions dropped, all in one transaction. A
// roster entry created on the way is deleted again if that transaction fails.
// Reingestion runs after commit; when it fails the committed result is still
// returned together with an upstream error.
func (s *Service) Resolve(ctx context.Context, input ResolveInput) (ResolutionResult, error) {
	if err := checkContext(ctx); err != nil {
		return ResolutionResult{}, err
	}
	if s.repo == nil || s.history == nil {
		return ResolutionResult{}, errors.New("orphan repositories are required")
	}
	if s.uow == nil {
		return ResolutionResult{}, errors.New("orphan unit of work is required")
	}
	if s.directory == nil {
		return ResolutionResult{}, errors.New("roster directory is required")
	}
	if s.reingester == nil {
		return ResolutionResult{}, errors.New("reingester is required")
	}

	input.CompositeID = strings.TrimSpace(input.CompositeID)
	if err := s.validateInput(input); err != nil {
		return ResolutionResult{}, err
	}

	logCtx := componentContext(ctx, "orphan.resolve", slog.String("composite_id", input.CompositeID))

	release, err := s.acquireResolveLock(ctx, input.CompositeID)
	if err != nil {
		return ResolutionResult{}, err
	}
	committed, err := s.commitResolution(logCtx, input)
	release()
	if err != nil {
		return ResolutionResult{}, err
	}

	logging.Info(logCtx, "orphan resolved", slog.String("document_id", committed.record.DocumentID))
	return s.reingestResolved(logCtx, committed)
}

func (s *Service) acquireResolveLock(ctx context.Context, compositeID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	release, err := s.locker.Acquire(ctx, resolveLockKey(compositeID))
	if err != nil {
		return nil, err
	}
	return func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logging.Warn(
				componentContext(ctx, "orphan.resolve"),
				"release resolve lock failed",
				slog.Any("err", errs.Loggable(err)),
				slog.String("composite_id", compositeID),
			)
		}
	}, nil
}

func (s *Service) commitResolution(ctx context.Context, input ResolveInput) (committedResolution, error) {
	live, err := s.repo.ListLiveByComposite(ctx, input.OrgID, input.CompositeID)
	if err != nil {
		return committedResolution{}, err
	}
	switch len(live) {
	case 0:
		return committedResolution{}, fmt.Errorf("%w: %s", domainorphan.ErrRecordNotFound, input.CompositeID)
	case 1:
	default:
		return committedResolution{}, fmt.Errorf("%w: %s has %d active records", domainorphan.ErrMultipleRecords, input.CompositeID, len(live))
	}
	record := live[0]

	var history []ports.RosterHistoryEntry
	if input.Unit != nil && *input.Unit != 0 {
		history, err = s.history.ListUnitHistorySince(ctx, input.OrgID, *input.Unit, record.Timestamp)
		if err != nil {
			return committedResolution{}, err
		}
	}

	var created *ports.RosterEntry
	if len(history) == 0 {
		entry, err := s.directory.CreateRosterEntry(ctx, input.OrgID, input.Role, rosterEntryFor(record, input))
		if err != nil {
			return committedResolution{}, err
		}
		created = &entry
		logging.Info(ctx, "roster entry created for orphan", slog.Uint64("roster_id", entry.ID), slog.Uint64("unit_id", entry.UnitID))

		history, err = s.history.ListUnitHistorySince(ctx, input.OrgID, entry.UnitID, record.Timestamp)
		if err != nil {
			return committedResolution{}, s.compensate(ctx, created, err)
		}
		if len(history) == 0 {
			return committedResolution{}, s.compensate(ctx, created, fmt.Errorf("%w: unit %d", domainorphan.ErrRosterHistoryMissing, entry.UnitID))
		}
	}

	now := s.now().UTC()
	intentID := s.newID()
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		earliest, err := s.repo.EarliestReport(txCtx, input.OrgID, input.CompositeID)
		if err != nil {
			return err
		}

		if err := s.history.UpdateHistoryTimestamps(txCtx, backdate(history, earliest)); err != nil {
			return err
		}

		deleted, err := s.repo.SoftDeleteComposite(txCtx, input.OrgID, input.CompositeID, now)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return fmt.Errorf("%w: %s was resolved concurrently", domainorphan.ErrRecordNotFound, input.CompositeID)
		}

		if _, err := s.repo.PurgeActions(txCtx, ports.ActionPurge{
			CompositeID: input.CompositeID,
			ExpiredAt:   now,
		}); err != nil {
			return err
		}

		return s.repo.CreateReingestIntent(txCtx, ports.ReingestIntent{
			ID:          intentID,
			CompositeID: input.CompositeID,
			DocumentID:  record.DocumentID,
			Status:      domainorphan.ReingestPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}); err != nil {
		return committedResolution{}, s.compensate(ctx, created, err)
	}

	deletedOn := now
	record.DeletedOn = &deletedOn
	return committedResolution{record: record, intentID: intentID}, nil
}

// compensate undoes a roster entry created during a failed resolution.
// The returned error always leads with cause.
func (s *Service) compensate(ctx context.Context, created *ports.RosterEntry, cause error) error {
	if created == nil {
		return cause
	}
	if err := s.directory.DeleteRosterEntry(context.WithoutCancel(ctx), *created); err != nil {
		logging.Error(
			ctx,
			"compensating roster entry delete failed",
			slog.Any("err", errs.Loggable(err)),
			slog.Any("cause", errs.Loggable(cause)),
			slog.Uint64("roster_id", created.ID),
		)
		return errors.Join(cause, errs.WithStack(errs.Wrapf(err, "compensate roster entry %d", created.ID)))
	}
	logging.Warn(ctx, "roster entry removed after failed resolution", slog.Uint64("roster_id", created.ID))
	return cause
}

func (s *Service) reingestResolved(ctx context.Context, committed committedResolution) (ResolutionResult, error) {
	result := ResolutionResult{
		Items: []ResolutionItem{{OrphanedRecord: committed.record}},
	}

	outcome, err := s.reingester.ReingestDocument(ctx, committed.record.DocumentID)
	at := s.now().UTC()
	if err != nil {
		logging.Warn(ctx, "reingest after resolve failed",
			slog.Any("err", errs.Loggable(err)),
			slog.String("document_id", committed.record.DocumentID),
		)
		s.markIntent(ctx, committed.intentID, domainorphan.ReingestFailed, err.Error(), at)
		return result, fmt.Errorf("%w: document %s: %v", domainorphan.ErrReingestFailed, committed.record.DocumentID, err)
	}

	s.markIntent(ctx, committed.intentID, domainorphan.ReingestSucceeded, "", at)
	result.RecordsIngested = outcome.RecordsIngested
	result.LambdaInvocationCount = outcome.LambdaInvocationCount
	result.Items[0].RecordsIngested = outcome.RecordsIngested
	result.Items[0].LambdaInvocationCount = outcome.LambdaInvocationCount
	return result, nil
}

// markIntent is best effort; a stale intent is picked up again by the retry sweep.
func (s *Service) markIntent(ctx context.Context, id string, status domainorphan.ReingestStatus, lastError string, at time.Time) {
	if err := s.repo.MarkReingestIntent(ctx, id, status, lastError, at); err != nil {
		logging.Error(ctx, "update reingest intent failed",
			slog.Any("err", errs.Loggable(err)),
			slog.String("intent_id", id),
			slog.String("status", string(status)),
		)
	}
}

func rosterEntryFor(record ports.OrphanedRecord, input ResolveInput) ports.RosterEntryData {
	entry := input.Entry
	if strings.TrimSpace(entry.EDIPI) == "" {
		entry.EDIPI = record.EDIPI
	}
	if strings.TrimSpace(entry.Phone) == "" {
		entry.Phone = record.Phone
	}
	if entry.UnitID == 0 && input.Unit != nil {
		entry.UnitID = *input.Unit
	}
	return entry
}

func backdate(history []ports.RosterHistoryEntry, earliest time.Time) []ports.RosterHistoryEntry {
	current := make([]time.Time, len(history))
	for i, entry := range history {
		current[i] = entry.Timestamp
	}

	next := domainorphan.BackdateTimestamps(current, earliest)
	out := make([]ports.RosterHistoryEntry, len(history))
	for i, entry := range history {
		entry.Timestamp = next[i]
		out[i] = entry
	}
	return out
}
