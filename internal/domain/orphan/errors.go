package orphan

import "rosterrecon/internal/errs"

var (
	ErrCompositeIDRequired    = errs.E(errs.ErrInvalidArgument, "composite id is required")
	ErrUserIDRequired         = errs.E(errs.ErrInvalidArgument, "user id is required")
	ErrOrgIDRequired          = errs.E(errs.ErrInvalidArgument, "org id is required")
	ErrActionTypeRequired     = errs.E(errs.ErrInvalidArgument, "action type is required")
	ErrInvalidActionType      = errs.E(errs.ErrInvalidArgument, "invalid action type")
	ErrReportingGroupRequired = errs.E(errs.ErrInvalidArgument, "reporting group is required")
	ErrInvalidTimestamp       = errs.E(errs.ErrInvalidArgument, "invalid timestamp")
	ErrNegativeTTL            = errs.E(errs.ErrInvalidArgument, "action ttl must not be negative")

	ErrRecordNotFound         = errs.E(errs.ErrNotFound, "unable to locate orphaned record")
	ErrReportingGroupNotFound = errs.E(errs.ErrNotFound, "unable to locate org for reporting group")

	ErrMultipleRecords = errs.E(errs.ErrConflict, "encountered multiple orphaned records")
	ErrResolveBusy     = errs.E(errs.ErrConflict, "orphaned record is being resolved")

	ErrRosterHistoryMissing = errs.E(errs.ErrInternal, "unable to locate roster history record")

	ErrReingestFailed = errs.E(errs.ErrUpstream, "reingestion failed")
)
