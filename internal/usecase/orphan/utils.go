package orphan

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"rosterrecon/internal/bootstrap/logging"
	domainorphan "rosterrecon/internal/domain/orphan"
	"rosterrecon/internal/errs"
)

// fieldErrors maps "Field.tag" validator failures to domain errors.
var fieldErrors = map[string]error{
	"CompositeID.required":    domainorphan.ErrCompositeIDRequired,
	"UserID.required":         domainorphan.ErrUserIDRequired,
	"OrgID.required":          domainorphan.ErrOrgIDRequired,
	"Type.required":           domainorphan.ErrActionTypeRequired,
	"Type.oneof":              domainorphan.ErrInvalidActionType,
	"ReportingGroup.required": domainorphan.ErrReportingGroupRequired,
	"Timestamp.required":      domainorphan.ErrInvalidTimestamp,
}

func (s *Service) validateInput(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errs.E(errs.ErrInvalidArgument, "invalid input: %v", err)
	}
	for _, fe := range validationErrors {
		if mapped, ok := fieldErrors[fe.Field()+"."+fe.Tag()]; ok {
			return mapped
		}
	}
	fe := validationErrors[0]
	return errs.E(errs.ErrInvalidArgument, "%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

func componentContext(ctx context.Context, component string, attrs ...slog.Attr) context.Context {
	all := append([]slog.Attr{slog.String("component", component)}, attrs...)
	return logging.WithAttrs(ctx, all...)
}

func normalizeActionType(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func resolveLockKey(compositeID string) string {
	return "orphan:resolve:" + compositeID
}
