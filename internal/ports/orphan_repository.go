package ports

import (
	"context"
	"time"

	"rosterrecon/internal/domain/orphan"
)

type OrphanedRecord struct {
	ID          uint64
	CompositeID string
	DocumentID  string
	EDIPI       string
	Phone       string
	Unit        string
	Timestamp   time.Time
	OrgID       uint64
	DeletedOn   *time.Time
}

type OrphanedRecordAction struct {
	CompositeID string
	UserID      string
	Type        orphan.ActionType
	ExpiresOn   *time.Time
}

// VisibilityQuery scopes the visible set to one user within one org at Now.
type VisibilityQuery struct {
	UserID string
	OrgID  uint64
	Now    time.Time
}

// VisibleOrphan aggregates every live record sharing a composite id.
type VisibleOrphan struct {
	ID                 string
	EDIPI              string
	Phone              string
	Unit               string
	Count              int
	Action             orphan.ActionType
	ClaimedUntil       *time.Time
	LatestReportDate   time.Time
	EarliestReportDate time.Time
	UnitID             *uint64
	RosterHistoryID    *uint64
}

// ActionPurge deletes actions of CompositeID owned by UserID (any owner when empty)
// of Type (any type when empty), together with every action of any composite whose
// expiry is at or before ExpiredAt.
type ActionPurge struct {
	CompositeID string
	UserID      string
	Type        orphan.ActionType
	ExpiredAt   time.Time
}

type ReingestIntent struct {
	ID          string
	CompositeID string
	DocumentID  string
	Status      orphan.ReingestStatus
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrphanReadRepository interface {
	ListVisible(ctx context.Context, query VisibilityQuery) ([]VisibleOrphan, error)
	ListLiveByComposite(ctx context.Context, orgID uint64, compositeID string) ([]OrphanedRecord, error)
	EarliestReport(ctx context.Context, orgID uint64, compositeID string) (time.Time, error)
	FindByDocumentID(ctx context.Context, documentID string) (OrphanedRecord, error)
	ListActions(ctx context.Context, compositeID string) ([]OrphanedRecordAction, error)
	ListRetryableReingestIntents(ctx context.Context, updatedBefore time.Time, limit int) ([]ReingestIntent, error)
}

type OrphanRepository interface {
	OrphanReadRepository
	CreateRecord(ctx context.Context, record OrphanedRecord) (OrphanedRecord, error)
	// SoftDeleteComposite marks live rows deleted and reports how many rows it changed.
	SoftDeleteComposite(ctx context.Context, orgID uint64, compositeID string, at time.Time) (int64, error)
	PurgeActions(ctx context.Context, purge ActionPurge) (int64, error)
	CreateAction(ctx context.Context, action OrphanedRecordAction) (OrphanedRecordAction, error)
	CreateReingestIntent(ctx context.Context, intent ReingestIntent) error
	MarkReingestIntent(ctx context.Context, id string, status orphan.ReingestStatus, lastError string, at time.Time) error
}
