package orphan

import (
	"context"
	"errors"
	"strings"

	"rosterrecon/internal/ports"
)

// ListVisible returns the orphan groups the user may act on right now.
// Groups claimed by someone else or ignored by the user are left out.
func (s *Service) ListVisible(ctx context.Context, input ListVisibleInput) ([]ports.VisibleOrphan, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errors.New("orphan repository is required")
	}

	input.UserID = strings.TrimSpace(input.UserID)
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	return s.repo.ListVisible(ctx, ports.VisibilityQuery{
		UserID: input.UserID,
		OrgID:  input.OrgID,
		Now:    s.now().UTC(),
	})
}
