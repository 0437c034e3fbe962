package ports

import (
	"context"
	"time"

	"rosterrecon/internal/domain/orphan"
)

type Org struct {
	ID             uint64
	Name           string
	ReportingGroup string
}

type RosterHistoryEntry struct {
	ID         uint64
	UnitID     uint64
	EDIPI      string
	ChangeType orphan.ChangeType
	Timestamp  time.Time
}

// RosterEntryData describes the individual a new roster entry is created for.
type RosterEntryData struct {
	EDIPI     string
	UnitID    uint64
	FirstName string
	LastName  string
	Phone     string
}

type RosterEntry struct {
	ID        uint64
	OrgID     uint64
	UnitID    uint64
	EDIPI     string
	FirstName string
	LastName  string
	Phone     string
	// HistoryID is the "added" history row written alongside the entry.
	HistoryID uint64
}

// RosterDirectory creates roster entries and undoes them for compensation.
type RosterDirectory interface {
	CreateRosterEntry(ctx context.Context, orgID uint64, role string, data RosterEntryData) (RosterEntry, error)
	DeleteRosterEntry(ctx context.Context, entry RosterEntry) error
}

type RosterHistoryRepository interface {
	// ListUnitHistorySince orders rows by edipi, timestamp then change type, all descending.
	// A unit outside orgID is reported as not found.
	ListUnitHistorySince(ctx context.Context, orgID, unitID uint64, since time.Time) ([]RosterHistoryEntry, error)
	UpdateHistoryTimestamps(ctx context.Context, entries []RosterHistoryEntry) error
	FindOrgByReportingGroup(ctx context.Context, reportingGroup string) (Org, error)
}
