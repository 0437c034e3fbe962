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

// AddRecord stores one orphan report. Reports are idempotent per document id:
// a second report for a known document returns the stored record.
func (s *Service) AddRecord(ctx context.Context, input AddRecordInput) (AddRecordResult, error) {
	if err := checkContext(ctx); err != nil {
		return AddRecordResult{}, err
	}
	if s.repo == nil || s.history == nil {
		return AddRecordResult{}, errors.New("orphan repositories are required")
	}
	if s.uow == nil {
		return AddRecordResult{}, errors.New("orphan unit of work is required")
	}

	input.DocumentID = strings.TrimSpace(input.DocumentID)
	input.EDIPI = strings.TrimSpace(input.EDIPI)
	input.Unit = strings.TrimSpace(input.Unit)
	input.ReportingGroup = strings.TrimSpace(input.ReportingGroup)
	input.CompositeID = strings.TrimSpace(input.CompositeID)
	if err := s.validateInput(input); err != nil {
		return AddRecordResult{}, err
	}

	timestamp, err := domainorphan.ParseTimestamp(input.Timestamp)
	if err != nil {
		return AddRecordResult{}, err
	}

	var result AddRecordResult
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		org, err := s.history.FindOrgByReportingGroup(txCtx, input.ReportingGroup)
		if err != nil {
			return err
		}

		existing, err := s.repo.FindByDocumentID(txCtx, input.DocumentID)
		switch {
		case err == nil:
			result = AddRecordResult{Record: existing}
			return nil
		case !errors.Is(err, domainorphan.ErrRecordNotFound):
			return err
		}

		compositeID := input.CompositeID
		if compositeID == "" {
			compositeID = domainorphan.CompositeID(org.ID, input.EDIPI, input.Unit)
		}

		record, err := s.repo.CreateRecord(txCtx, ports.OrphanedRecord{
			CompositeID: compositeID,
			DocumentID:  input.DocumentID,
			EDIPI:       input.EDIPI,
			Phone:       domainorphan.NormalizePhone(input.Phone, s.phoneRegion),
			Unit:        input.Unit,
			Timestamp:   timestamp,
			OrgID:       org.ID,
		})
		if err != nil {
			return err
		}
		result = AddRecordResult{Record: record, Created: true}
		return nil
	}); err != nil {
		return AddRecordResult{}, err
	}

	if result.Created {
		logging.Info(
			componentContext(ctx, "orphan.intake"),
			"orphan record added",
			slog.String("composite_id", result.Record.CompositeID),
			slog.String("document_id", result.Record.DocumentID),
		)
	}
	return result, nil
}

// DeleteRecord soft-deletes every live row of the group.
func (s *Service) DeleteRecord(ctx context.Context, orgID uint64, compositeID string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if s.repo == nil {
		return errors.New("orphan repository is required")
	}
	if s.uow == nil {
		return errors.New("orphan unit of work is required")
	}

	compositeID = strings.TrimSpace(compositeID)
	if compositeID == "" {
		return domainorphan.ErrCompositeIDRequired
	}
	if orgID == 0 {
		return domainorphan.ErrOrgIDRequired
	}

	now := s.now().UTC()
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		deleted, err := s.repo.SoftDeleteComposite(txCtx, orgID, compositeID, now)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return fmt.Errorf("%w: %s", domainorphan.ErrRecordNotFound, compositeID)
		}
		_, err = s.repo.PurgeActions(txCtx, ports.ActionPurge{CompositeID: compositeID, ExpiredAt: now})
		return err
	}); err != nil {
		return err
	}

	logging.Info(componentContext(ctx, "orphan.intake"), "orphan record removed", slog.Uint64("org_id", orgID), slog.String("composite_id", compositeID))
	return nil
}
