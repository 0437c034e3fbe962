package repository

import (
	"context"
	"database/sql"
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

type OrphanRepository struct {
	db *gorm.DB
}

var _ ports.OrphanRepository = (*OrphanRepository)(nil)

func NewOrphanRepository(db *gorm.DB) *OrphanRepository {
	return &OrphanRepository{db: db}
}

func (r *OrphanRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	return dbFromContext(ctx, r.db)
}

// visibleOrphansSQL folds roster state and lock state into the per-composite view.
//
// latest:     newest history row per (unit, edipi); deletion wins timestamp ties.
// membership: the subject's newest live membership across the org's units.
// departed:   subjects whose membership ended in at least one unit.
// A group is hidden when its subject departed with no live membership left, when
// another user holds a live claim, or when the requester holds a live ignore.
const visibleOrphansSQL = `
WITH latest AS (
	SELECT rh.id, rh.unit_id, rh.edipi, rh.change_type, rh.timestamp,
		ROW_NUMBER() OVER (
			PARTITION BY rh.unit_id, rh.edipi
			ORDER BY rh.timestamp DESC, rh.change_type DESC, rh.id DESC
		) AS rn
	FROM roster_history rh
	JOIN units u ON u.id = rh.unit_id
	WHERE u.org_id = @org_id
),
membership AS (
	SELECT l.id, l.unit_id, l.edipi,
		ROW_NUMBER() OVER (PARTITION BY l.edipi ORDER BY l.timestamp DESC, l.id DESC) AS pick
	FROM latest l
	WHERE l.rn = 1 AND l.change_type <> 'deleted'
),
departed AS (
	SELECT DISTINCT l.edipi FROM latest l WHERE l.rn = 1 AND l.change_type = 'deleted'
),
grouped AS (
	SELECT o.composite_id,
		MAX(o.edipi) AS edipi,
		MAX(o.phone) AS phone,
		MAX(o.unit) AS unit,
		COUNT(*) AS record_count,
		MIN(o.timestamp) AS earliest_report,
		MAX(o.timestamp) AS latest_report
	FROM orphaned_records o
	WHERE o.org_id = @org_id AND o.deleted_on = 0
	GROUP BY o.composite_id
)
SELECT g.composite_id, g.edipi, g.phone, g.unit, g.record_count, g.earliest_report, g.latest_report,
	own.type AS action_type,
	own.expires_on AS claimed_until,
	m.unit_id AS roster_unit_id,
	m.id AS roster_history_id
FROM grouped g
LEFT JOIN membership m ON m.edipi = g.edipi AND m.pick = 1
LEFT JOIN orphaned_record_actions own ON own.composite_id = g.composite_id
	AND own.user_id = @user_id
	AND own.type = 'claim'
	AND (own.expires_on IS NULL OR own.expires_on > @now)
WHERE (m.id IS NOT NULL OR NOT EXISTS (SELECT 1 FROM departed d WHERE d.edipi = g.edipi))
	AND NOT EXISTS (
		SELECT 1 FROM orphaned_record_actions a
		WHERE a.composite_id = g.composite_id
			AND (a.expires_on IS NULL OR a.expires_on > @now)
			AND (
				(a.type = 'claim' AND a.user_id <> @user_id)
				OR (a.type = 'ignore' AND a.user_id = @user_id)
			)
	)
ORDER BY g.latest_report DESC, g.composite_id ASC
`

type visibleOrphanRow struct {
	CompositeID     string         `gorm:"column:composite_id"`
	EDIPI           string         `gorm:"column:edipi"`
	Phone           string         `gorm:"column:phone"`
	Unit            string         `gorm:"column:unit"`
	RecordCount     int            `gorm:"column:record_count"`
	EarliestReport  int64          `gorm:"column:earliest_report"`
	LatestReport    int64          `gorm:"column:latest_report"`
	ActionType      sql.NullString `gorm:"column:action_type"`
	ClaimedUntil    sql.NullInt64  `gorm:"column:claimed_until"`
	RosterUnitID    sql.NullInt64  `gorm:"column:roster_unit_id"`
	RosterHistoryID sql.NullInt64  `gorm:"column:roster_history_id"`
}

func (r *OrphanRepository) ListVisible(ctx context.Context, query ports.VisibilityQuery) ([]ports.VisibleOrphan, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []visibleOrphanRow
	if err := db.Raw(visibleOrphansSQL, map[string]any{
		"org_id":  query.OrgID,
		"user_id": query.UserID,
		"now":     orphan.ToMillis(query.Now),
	}).Scan(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query visible orphaned records")
	}

	items := make([]ports.VisibleOrphan, 0, len(rows))
	for _, row := range rows {
		item := ports.VisibleOrphan{
			ID:                 row.CompositeID,
			EDIPI:              row.EDIPI,
			Phone:              row.Phone,
			Unit:               row.Unit,
			Count:              row.RecordCount,
			EarliestReportDate: orphan.FromMillis(row.EarliestReport),
			LatestReportDate:   orphan.FromMillis(row.LatestReport),
		}
		if row.ActionType.Valid {
			item.Action = orphan.ActionType(row.ActionType.String)
		}
		if row.ClaimedUntil.Valid {
			until := orphan.FromMillis(row.ClaimedUntil.Int64)
			item.ClaimedUntil = &until
		}
		if row.RosterUnitID.Valid {
			unitID := uint64(row.RosterUnitID.Int64)
			item.UnitID = &unitID
		}
		if row.RosterHistoryID.Valid {
			historyID := uint64(row.RosterHistoryID.Int64)
			item.RosterHistoryID = &historyID
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *OrphanRepository) ListLiveByComposite(ctx context.Context, orgID uint64, compositeID string) ([]ports.OrphanedRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.OrphanedRecord
	if err := db.
		Where("org_id = ? AND composite_id = ?", orgID, compositeID).
		Order("timestamp asc").
		Order("id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query orphaned records by composite id")
	}

	items := make([]ports.OrphanedRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapOrphanedRecord(row))
	}
	return items, nil
}

// EarliestReport covers every row of the composite, including soft-deleted ones.
func (r *OrphanRepository) EarliestReport(ctx context.Context, orgID uint64, compositeID string) (time.Time, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return time.Time{}, err
	}

	var earliest sql.NullInt64
	if err := db.Unscoped().
		Model(&model.OrphanedRecord{}).
		Where("org_id = ? AND composite_id = ?", orgID, compositeID).
		Select("MIN(timestamp)").
		Scan(&earliest).Error; err != nil {
		return time.Time{}, errs.Wrap(err, "query earliest orphaned report")
	}
	if !earliest.Valid {
		return time.Time{}, fmt.Errorf("%w: %s", orphan.ErrRecordNotFound, compositeID)
	}
	return orphan.FromMillis(earliest.Int64), nil
}

func (r *OrphanRepository) FindByDocumentID(ctx context.Context, documentID string) (ports.OrphanedRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.OrphanedRecord{}, err
	}

	var row model.OrphanedRecord
	if err := db.Where("document_id = ?", documentID).Order("id asc").Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.OrphanedRecord{}, fmt.Errorf("%w: document %s", orphan.ErrRecordNotFound, documentID)
		}
		return ports.OrphanedRecord{}, errs.Wrap(err, "query orphaned record by document id")
	}
	return mapOrphanedRecord(row), nil
}

func (r *OrphanRepository) ListActions(ctx context.Context, compositeID string) ([]ports.OrphanedRecordAction, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.OrphanedRecordAction
	if err := db.
		Where("composite_id = ?", compositeID).
		Order("user_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query orphaned record actions")
	}

	items := make([]ports.OrphanedRecordAction, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAction(row))
	}
	return items, nil
}

func (r *OrphanRepository) CreateRecord(ctx context.Context, record ports.OrphanedRecord) (ports.OrphanedRecord, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.OrphanedRecord{}, err
	}

	row := model.OrphanedRecord{
		CompositeID: record.CompositeID,
		DocumentID:  record.DocumentID,
		EDIPI:       record.EDIPI,
		Phone:       record.Phone,
		Unit:        record.Unit,
		Timestamp:   orphan.ToMillis(record.Timestamp),
		OrgID:       record.OrgID,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.OrphanedRecord{}, errs.Wrap(err, "insert orphaned record")
	}
	return mapOrphanedRecord(row), nil
}

// SoftDeleteComposite only touches rows that are still live, so two racing
// callers cannot both observe a successful delete.
func (r *OrphanRepository) SoftDeleteComposite(ctx context.Context, orgID uint64, compositeID string, at time.Time) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	result := db.Model(&model.OrphanedRecord{}).
		Where("org_id = ? AND composite_id = ? AND deleted_on = 0", orgID, compositeID).
		Update("deleted_on", orphan.ToMillis(at))
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "soft delete orphaned records")
	}
	return result.RowsAffected, nil
}

func (r *OrphanRepository) PurgeActions(ctx context.Context, purge ports.ActionPurge) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	compositeID := strings.TrimSpace(purge.CompositeID)
	hasExpiry := !purge.ExpiredAt.IsZero()
	if compositeID == "" && !hasExpiry {
		return 0, nil
	}

	var cond *gorm.DB
	if compositeID != "" {
		cond = db.Where("composite_id = ?", compositeID)
		if userID := strings.TrimSpace(purge.UserID); userID != "" {
			cond = cond.Where("user_id = ?", userID)
		}
		if purge.Type != "" {
			cond = cond.Where("type = ?", string(purge.Type))
		}
	}

	expiredSQL := "expires_on IS NOT NULL AND expires_on <= ?"
	expiredAt := orphan.ToMillis(purge.ExpiredAt)

	var query *gorm.DB
	switch {
	case cond != nil && hasExpiry:
		query = db.Where(cond).Or(expiredSQL, expiredAt)
	case cond != nil:
		query = cond
	default:
		query = db.Where(expiredSQL, expiredAt)
	}

	result := query.Delete(&model.OrphanedRecordAction{})
	if result.Error != nil {
		return 0, errs.Wrap(result.Error, "delete orphaned record actions")
	}
	return result.RowsAffected, nil
}

func (r *OrphanRepository) CreateAction(ctx context.Context, action ports.OrphanedRecordAction) (ports.OrphanedRecordAction, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.OrphanedRecordAction{}, err
	}

	row := model.OrphanedRecordAction{
		CompositeID: action.CompositeID,
		UserID:      action.UserID,
		Type:        string(action.Type),
	}
	if action.ExpiresOn != nil {
		ms := orphan.ToMillis(*action.ExpiresOn)
		row.ExpiresOn = &ms
	}
	if err := db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ports.OrphanedRecordAction{}, errs.E(errs.ErrConflict, "action for %s by %s already exists", action.CompositeID, action.UserID)
		}
		return ports.OrphanedRecordAction{}, errs.Wrap(err, "insert orphaned record action")
	}
	return mapAction(row), nil
}

func (r *OrphanRepository) CreateReingestIntent(ctx context.Context, intent ports.ReingestIntent) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.ReingestIntent{
		ID:          intent.ID,
		CompositeID: intent.CompositeID,
		DocumentID:  intent.DocumentID,
		Status:      string(intent.Status),
		Attempts:    intent.Attempts,
		LastError:   intent.LastError,
		CreatedOn:   orphan.ToMillis(intent.CreatedAt),
		UpdatedOn:   orphan.ToMillis(intent.UpdatedAt),
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert reingest intent")
	}
	return nil
}

// MarkReingestIntent records the outcome of one reingestion attempt.
func (r *OrphanRepository) MarkReingestIntent(ctx context.Context, id string, status orphan.ReingestStatus, lastError string, at time.Time) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Model(&model.ReingestIntent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"last_error": lastError,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_on": orphan.ToMillis(at),
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update reingest intent")
	}
	if result.RowsAffected == 0 {
		return errs.E(errs.ErrNotFound, "reingest intent %s not found", id)
	}
	return nil
}

func (r *OrphanRepository) ListRetryableReingestIntents(ctx context.Context, updatedBefore time.Time, limit int) ([]ports.ReingestIntent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.ReingestIntent{}).
		Where("status IN ?", []string{string(orphan.ReingestPending), string(orphan.ReingestFailed)}).
		Where("updated_on <= ?", orphan.ToMillis(updatedBefore)).
		Order("updated_on asc").
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.ReingestIntent
	if err := query.Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query retryable reingest intents")
	}

	items := make([]ports.ReingestIntent, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.ReingestIntent{
			ID:          row.ID,
			CompositeID: row.CompositeID,
			DocumentID:  row.DocumentID,
			Status:      orphan.ReingestStatus(row.Status),
			Attempts:    row.Attempts,
			LastError:   row.LastError,
			CreatedAt:   orphan.FromMillis(row.CreatedOn),
			UpdatedAt:   orphan.FromMillis(row.UpdatedOn),
		})
	}
	return items, nil
}

func mapOrphanedRecord(row model.OrphanedRecord) ports.OrphanedRecord {
	record := ports.OrphanedRecord{
		ID:          row.ID,
		CompositeID: row.CompositeID,
		DocumentID:  row.DocumentID,
		EDIPI:       row.EDIPI,
		Phone:       row.Phone,
		Unit:        row.Unit,
		Timestamp:   orphan.FromMillis(row.Timestamp),
		OrgID:       row.OrgID,
	}
	if row.DeletedOn != 0 {
		deletedOn := orphan.FromMillis(int64(row.DeletedOn))
		record.DeletedOn = &deletedOn
	}
	return record
}

func mapAction(row model.OrphanedRecordAction) ports.OrphanedRecordAction {
	action := ports.OrphanedRecordAction{
		CompositeID: row.CompositeID,
		UserID:      row.UserID,
		Type:        orphan.ActionType(row.Type),
	}
	if row.ExpiresOn != nil {
		expiresOn := orphan.FromMillis(*row.ExpiresOn)
		action.ExpiresOn = &expiresOn
	}
	return action
}
