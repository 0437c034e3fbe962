package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"rosterrecon/internal/domain/orphan"
	"rosterrecon/internal/errs"
	"rosterrecon/internal/infrastructure/persistence/sqlite/model"
	"rosterrecon/internal/ports"
)

// RosterRepository is the store-backed roster directory and history reader.
type RosterRepository struct {
	db  *gorm.DB
	now func() time.Time
}

var (
	_ ports.RosterDirectory         = (*RosterRepository)(nil)
	_ ports.RosterHistoryRepository = (*RosterRepository)(nil)
)

func NewRosterRepository(db *gorm.DB) *RosterRepository {
	return &RosterRepository{db: db, now: time.Now}
}

func (r *RosterRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	return dbFromContext(ctx, r.db)
}

func (r *RosterRepository) ListUnitHistorySince(ctx context.Context, orgID, unitID uint64, since time.Time) ([]ports.RosterHistoryEntry, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var owned int64
	if err := db.Model(&model.Unit{}).Where("id = ? AND org_id = ?", unitID, orgID).Count(&owned).Error; err != nil {
		return nil, errs.Wrap(err, "query unit")
	}
	if owned == 0 {
		return nil, errs.E(errs.ErrNotFound, "unit %d not found in org %d", unitID, orgID)
	}

	var rows []model.RosterHistory
	if err := db.
		Where("unit_id = ? AND timestamp >= ?", unitID, orphan.ToMillis(since)).
		Order("edipi desc").
		Order("timestamp desc").
		Order("change_type desc").
		Order("id desc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query roster history")
	}

	items := make([]ports.RosterHistoryEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapRosterHistory(row))
	}
	return items, nil
}

func (r *RosterRepository) UpdateHistoryTimestamps(ctx context.Context, entries []ports.RosterHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return inTx(ctx, r.db, func(txCtx context.Context) error {
		db, err := r.dbFromContext(txCtx)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := db.Model(&model.RosterHistory{}).
				Where("id = ?", entry.ID).
				Update("timestamp", orphan.ToMillis(entry.Timestamp)).Error; err != nil {
				return errs.Wrapf(err, "update roster history %d", entry.ID)
			}
		}
		return nil
	})
}

func (r *RosterRepository) FindOrgByReportingGroup(ctx context.Context, reportingGroup string) (ports.Org, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Org{}, err
	}

	var row model.Org
	if err := db.Where("reporting_group = ?", strings.TrimSpace(reportingGroup)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Org{}, fmt.Errorf("%w: %s", orphan.ErrReportingGroupNotFound, reportingGroup)
		}
		return ports.Org{}, errs.Wrap(err, "query org by reporting group")
	}
	return ports.Org{ID: row.ID, Name: row.Name, ReportingGroup: row.ReportingGroup}, nil
}

// CreateRosterEntry inserts the roster row and its "added" history row together.
// Role checks belong to the caller; the store does not enforce them.
func (r *RosterRepository) CreateRosterEntry(ctx context.Context, orgID uint64, _ string, data ports.RosterEntryData) (ports.RosterEntry, error) {
	edipi := strings.TrimSpace(data.EDIPI)
	if edipi == "" {
		return ports.RosterEntry{}, errs.E(errs.ErrInvalidArgument, "edipi is required to create a roster entry")
	}
	if data.UnitID == 0 {
		return ports.RosterEntry{}, errs.E(errs.ErrInvalidArgument, "unit is required to create a roster entry")
	}

	var created ports.RosterEntry
	err := inTx(ctx, r.db, func(txCtx context.Context) error {
		db, err := r.dbFromContext(txCtx)
		if err != nil {
			return err
		}

		var unit model.Unit
		if err := db.Where("id = ? AND org_id = ?", data.UnitID, orgID).Take(&unit).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errs.E(errs.ErrNotFound, "unit %d not found in org %d", data.UnitID, orgID)
			}
			return errs.Wrap(err, "query unit")
		}

		var existing int64
		if err := db.Model(&model.Roster{}).
			Where("unit_id = ? AND edipi = ?", unit.ID, edipi).
			Count(&existing).Error; err != nil {
			return errs.Wrap(err, "count roster entries")
		}
		if existing > 0 {
			return errs.E(errs.ErrConflict, "roster entry for %s already exists in unit %d", edipi, unit.ID)
		}

		now := orphan.ToMillis(r.now())
		row := model.Roster{
			OrgID:     orgID,
			UnitID:    unit.ID,
			EDIPI:     edipi,
			FirstName: strings.TrimSpace(data.FirstName),
			LastName:  strings.TrimSpace(data.LastName),
			Phone:     strings.TrimSpace(data.Phone),
			CreatedOn: now,
		}
		if err := db.Create(&row).Error; err != nil {
			return errs.Wrap(err, "insert roster entry")
		}

		history := model.RosterHistory{
			UnitID:     unit.ID,
			EDIPI:      edipi,
			ChangeType: string(orphan.ChangeAdded),
			Timestamp:  now,
		}
		if err := db.Create(&history).Error; err != nil {
			return errs.Wrap(err, "insert roster history")
		}

		created = mapRoster(row)
		created.HistoryID = history.ID
		return nil
	})
	if err != nil {
		return ports.RosterEntry{}, err
	}
	return created, nil
}

// DeleteRosterEntry removes the entry and the history row written with it.
func (r *RosterRepository) DeleteRosterEntry(ctx context.Context, entry ports.RosterEntry) error {
	return inTx(ctx, r.db, func(txCtx context.Context) error {
		db, err := r.dbFromContext(txCtx)
		if err != nil {
			return err
		}

		if err := db.Where("id = ?", entry.ID).Delete(&model.Roster{}).Error; err != nil {
			return errs.Wrapf(err, "delete roster entry %d", entry.ID)
		}
		if entry.HistoryID != 0 {
			if err := db.Where("id = ?", entry.HistoryID).Delete(&model.RosterHistory{}).Error; err != nil {
				return errs.Wrapf(err, "delete roster history %d", entry.HistoryID)
			}
		}
		return nil
	})
}

// EnsureOrg returns the org owning reportingGroup, creating it when missing, and
// adds any named unit the org does not have yet. Units are returned by name.
func (r *RosterRepository) EnsureOrg(ctx context.Context, name, reportingGroup string, units []string) (ports.Org, map[string]uint64, error) {
	group := strings.TrimSpace(reportingGroup)
	if group == "" {
		return ports.Org{}, nil, errs.E(errs.ErrInvalidArgument, "reporting group is required")
	}
	if strings.TrimSpace(name) == "" {
		name = group
	}

	var org ports.Org
	unitIDs := make(map[string]uint64, len(units))
	err := inTx(ctx, r.db, func(txCtx context.Context) error {
		db, err := r.dbFromContext(txCtx)
		if err != nil {
			return err
		}

		row := model.Org{Name: strings.TrimSpace(name), ReportingGroup: group}
		if err := db.Where("reporting_group = ?", group).FirstOrCreate(&row).Error; err != nil {
			return errs.Wrap(err, "ensure org")
		}
		org = ports.Org{ID: row.ID, Name: row.Name, ReportingGroup: row.ReportingGroup}

		for _, unitName := range units {
			unitName = strings.TrimSpace(unitName)
			if unitName == "" {
				continue
			}
			unit := model.Unit{OrgID: row.ID, Name: unitName}
			if err := db.Where("org_id = ? AND name = ?", row.ID, unitName).FirstOrCreate(&unit).Error; err != nil {
				return errs.Wrapf(err, "ensure unit %q", unitName)
			}
			unitIDs[unitName] = unit.ID
		}
		return nil
	})
	if err != nil {
		return ports.Org{}, nil, err
	}
	return org, unitIDs, nil
}

func mapRosterHistory(row model.RosterHistory) ports.RosterHistoryEntry {
	return ports.RosterHistoryEntry{
		ID:         row.ID,
		UnitID:     row.UnitID,
		EDIPI:      row.EDIPI,
		ChangeType: orphan.ChangeType(row.ChangeType),
		Timestamp:  orphan.FromMillis(row.Timestamp),
	}
}

func mapRoster(row model.Roster) ports.RosterEntry {
	return ports.RosterEntry{
		ID:        row.ID,
		OrgID:     row.OrgID,
		UnitID:    row.UnitID,
		EDIPI:     row.EDIPI,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Phone:     row.Phone,
	}
}
