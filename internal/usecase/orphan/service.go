package orphan

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"rosterrecon/internal/ports"
)

const defaultPhoneRegion = "US"

type Service struct {
	repo       ports.OrphanRepository
	history    ports.RosterHistoryRepository
	directory  ports.RosterDirectory
	uow        ports.UnitOfWork
	reingester ports.Reingester
	locker     ports.ResolveLocker
	validate   *validator.Validate

	now         func() time.Time
	newID       func() string
	phoneRegion string
	retryAfter  time.Duration
}

// Options carries the tunables read from configuration.
type Options struct {
	PhoneRegion string
	RetryAfter  time.Duration
}

// NewService wires orphan usecases. A nil locker disables cross-process resolve locking.
func NewService(
	repo ports.OrphanRepository,
	history ports.RosterHistoryRepository,
	directory ports.RosterDirectory,
	uow ports.UnitOfWork,
	reingester ports.Reingester,
	locker ports.ResolveLocker,
	opts Options,
) *Service {
	region := opts.PhoneRegion
	if region == "" {
		region = defaultPhoneRegion
	}
	return &Service{
		repo:        repo,
		history:     history,
		directory:   directory,
		uow:         uow,
		reingester:  reingester,
		locker:      locker,
		validate:    validator.New(),
		now:         time.Now,
		newID:       uuid.NewString,
		phoneRegion: region,
		retryAfter:  opts.RetryAfter,
	}
}

type ListVisibleInput struct {
	UserID string `validate:"required"`
	OrgID  uint64 `validate:"required"`
}

type SetActionInput struct {
	CompositeID string `validate:"required"`
	OrgID       uint64 `validate:"required"`
	UserID      string `validate:"required"`
	Type        string `validate:"required,oneof=claim ignore"`
	// TTL bounds the action lifetime; nil or zero means it never expires.
	// Negative values are rejected.
	TTL *time.Duration
}

type ClearActionInput struct {
	CompositeID string `validate:"required"`
	UserID      string `validate:"required"`
	Type        string `validate:"required,oneof=claim ignore"`
}

type ResolveInput struct {
	CompositeID string `validate:"required"`
	OrgID       uint64 `validate:"required"`
	Role        string
	// Unit is the preferred roster unit to look for history in.
	Unit *uint64
	// Entry describes the roster entry to create when no history matches.
	// EDIPI and Phone default to the orphan's values.
	Entry ports.RosterEntryData
}

type ResolutionItem struct {
	RecordsIngested       int
	LambdaInvocationCount int
	OrphanedRecord        ports.OrphanedRecord
}

type ResolutionResult struct {
	RecordsIngested       int
	LambdaInvocationCount int
	Items                 []ResolutionItem
}

type AddRecordInput struct {
	DocumentID     string `validate:"required"`
	Timestamp      string `validate:"required"`
	EDIPI          string `validate:"required"`
	Phone          string
	Unit           string
	ReportingGroup string `validate:"required"`
	// CompositeID is derived from org, edipi and unit when empty.
	CompositeID string
}

type AddRecordResult struct {
	Record  ports.OrphanedRecord
	Created bool
}

type RetryReingestResult struct {
	Attempted int
	Succeeded int
	Failed    int
}
