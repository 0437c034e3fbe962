package orphan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"rosterrecon/internal/bootstrap/logging"
	domainorphan "rosterrecon/internal/domain/orphan"
	"rosterrecon/internal/ports"
)

// SetAction replaces the user's action on a group. Expired actions of every
// owner are purged in the same transaction.
func (s *Service) SetAction(ctx context.Context, input SetActionInput) (ports.OrphanedRecordAction, error) {
	if err := checkContext(ctx); err != nil {
		return ports.OrphanedRecordAction{}, err
	}
	if s.repo == nil {
		return ports.OrphanedRecordAction{}, errors.New("orphan repository is required")
	}
	if s.uow == nil {
		return ports.OrphanedRecordAction{}, errors.New("orphan unit of work is required")
	}

	input.CompositeID = strings.TrimSpace(input.CompositeID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.Type = normalizeActionType(input.Type)
	if err := s.validateInput(input); err != nil {
		return ports.OrphanedRecordAction{}, err
	}
	actionType, err := domainorphan.ParseActionType(input.Type)
	if err != nil {
		return ports.OrphanedRecordAction{}, err
	}
	if input.TTL != nil && *input.TTL < 0 {
		return ports.OrphanedRecordAction{}, fmt.Errorf("%w: %s", domainorphan.ErrNegativeTTL, *input.TTL)
	}

	now := s.now().UTC()
	var created ports.OrphanedRecordAction
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.PurgeActions(txCtx, ports.ActionPurge{
			CompositeID: input.CompositeID,
			UserID:      input.UserID,
			ExpiredAt:   now,
		}); err != nil {
			return err
		}

		live, err := s.repo.ListLiveByComposite(txCtx, input.OrgID, input.CompositeID)
		if err != nil {
			return err
		}
		if len(live) == 0 {
			return fmt.Errorf("%w: %s", domainorphan.ErrRecordNotFound, input.CompositeID)
		}

		created, err = s.repo.CreateAction(txCtx, ports.OrphanedRecordAction{
			CompositeID: input.CompositeID,
			UserID:      input.UserID,
			Type:        actionType,
			ExpiresOn:   domainorphan.ExpiresAt(now, input.TTL),
		})
		return err
	}); err != nil {
		return ports.OrphanedRecordAction{}, err
	}

	logging.Info(
		componentContext(ctx, "orphan.action"),
		"orphan action set",
		slog.String("composite_id", created.CompositeID),
		slog.String("user_id", created.UserID),
		slog.String("type", string(created.Type)),
	)
	return created, nil
}

// ClearAction removes the matching action if present and purges expired ones.
func (s *Service) ClearAction(ctx context.Context, input ClearActionInput) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if s.repo == nil {
		return errors.New("orphan repository is required")
	}
	if s.uow == nil {
		return errors.New("orphan unit of work is required")
	}

	input.CompositeID = strings.TrimSpace(input.CompositeID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.Type = normalizeActionType(input.Type)
	if err := s.validateInput(input); err != nil {
		return err
	}
	actionType, err := domainorphan.ParseActionType(input.Type)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		_, err := s.repo.PurgeActions(txCtx, ports.ActionPurge{
			CompositeID: input.CompositeID,
			UserID:      input.UserID,
			Type:        actionType,
			ExpiredAt:   now,
		})
		return err
	})
}
