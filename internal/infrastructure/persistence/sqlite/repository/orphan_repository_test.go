package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"rosterrecon/internal/domain/orphan"
	"rosterrecon/internal/infrastructure/persistence/sqlite/model"
	"rosterrecon/internal/ports"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "orphans.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

type fixture struct {
	t  *testing.T
	db *gorm.DB
}

func (f fixture) org(reportingGroup string) model.Org {
	f.t.Helper()
	row := model.Org{Name: reportingGroup, ReportingGroup: reportingGroup}
	if err := f.db.Create(&row).Error; err != nil {
		f.t.Fatalf("insert org: %v", err)
	}
	return row
}

func (f fixture) unit(orgID uint64, name string) model.Unit {
	f.t.Helper()
	row := model.Unit{OrgID: orgID, Name: name}
	if err := f.db.Create(&row).Error; err != nil {
		f.t.Fatalf("insert unit: %v", err)
	}
	return row
}

func (f fixture) orphan(orgID uint64, compositeID string, edipi string, ts int64) model.OrphanedRecord {
	f.t.Helper()
	row := model.OrphanedRecord{
		CompositeID: compositeID,
		DocumentID:  compositeID + "-" + time.UnixMilli(ts).UTC().Format("150405.000"),
		EDIPI:       edipi,
		Phone:       "555-0100",
		Unit:        "alpha",
		Timestamp:   ts,
		OrgID:       orgID,
	}
	if err := f.db.Create(&row).Error; err != nil {
		f.t.Fatalf("insert orphan: %v", err)
	}
	return row
}

func (f fixture) history(unitID uint64, edipi string, change orphan.ChangeType, ts int64) model.RosterHistory {
	f.t.Helper()
	row := model.RosterHistory{UnitID: unitID, EDIPI: edipi, ChangeType: string(change), Timestamp: ts}
	if err := f.db.Create(&row).Error; err != nil {
		f.t.Fatalf("insert history: %v", err)
	}
	return row
}

func (f fixture) action(compositeID string, userID string, actionType orphan.ActionType, expiresOn *int64) {
	f.t.Helper()
	row := model.OrphanedRecordAction{CompositeID: compositeID, UserID: userID, Type: string(actionType), ExpiresOn: expiresOn}
	if err := f.db.Create(&row).Error; err != nil {
		f.t.Fatalf("insert action: %v", err)
	}
}

func ms(v int64) *int64 { return &v }

func visibleIDs(items []ports.VisibleOrphan) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func containsID(items []ports.VisibleOrphan, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

const testNow int64 = 1_000_000

func listVisible(t *testing.T, repo *OrphanRepository, userID string, orgID uint64) []ports.VisibleOrphan {
	t.Helper()
	items, err := repo.ListVisible(context.Background(), ports.VisibilityQuery{
		UserID: userID,
		OrgID:  orgID,
		Now:    orphan.FromMillis(testNow),
	})
	if err != nil {
		t.Fatalf("ListVisible() error = %v", err)
	}
	return items
}

func TestListVisibleAggregatesByComposite(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)

	org := f.org("rg-1")
	f.orphan(org.ID, "C1", "1111111111", 100)
	f.orphan(org.ID, "C1", "1111111111", 150)
	f.orphan(org.ID, "C2", "2222222222", 500)

	items := listVisible(t, repo, "alice", org.ID)
	if len(items) != 2 {
		t.Fatalf("ListVisible() len = %d, ids=%v", len(items), visibleIDs(items))
	}
	if items[0].ID != "C2" || items[1].ID != "C1" {
		t.Fatalf("ListVisible() order = %v, want [C2 C1]", visibleIDs(items))
	}

	c1 := items[1]
	if c1.Count != 2 {
		t.Fatalf("C1 count = %d, want 2", c1.Count)
	}
	if orphan.ToMillis(c1.EarliestReportDate) != 100 || orphan.ToMillis(c1.LatestReportDate) != 150 {
		t.Fatalf("C1 report range = %v..%v", c1.EarliestReportDate, c1.LatestReportDate)
	}
	if c1.Action != "" || c1.ClaimedUntil != nil || c1.UnitID != nil || c1.RosterHistoryID != nil {
		t.Fatalf("C1 unexpected lock/roster hints: %+v", c1)
	}
}

func TestListVisibleClaimIsExclusiveToOwner(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)

	org := f.org("rg-1")
	f.orphan(org.ID, "C1", "1111111111", 100)
	f.action("C1", "alice", orphan.ActionClaim, ms(testNow+60_000))

	if items := listVisible(t, repo, "bob", org.ID); containsID(items, "C1") {
		t.Fatalf("bob sees C1 claimed by alice")
	}

	items := listVisible(t, repo, "alice", org.ID)
	if len(items) != 1 || items[0].ID != "C1" {
		t.Fatalf("alice visible = %v, want [C1]", visibleIDs(items))
	}
	if items[0].Action != orphan.ActionClaim {
		t.Fatalf("alice action = %q, want claim", items[0].Action)
	}
	if items[0].ClaimedUntil == nil || orphan.ToMillis(*items[0].ClaimedUntil) != testNow+60_000 {
		t.Fatalf("alice claimedUntil = %v", items[0].ClaimedUntil)
	}
}

func TestListVisibleClaimHidesFromOtherClaimants(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)

	org := f.org("rg-1")
	f.orphan(org.ID, "C1", "1111111111", 100)
	f.action("C1", "alice", orphan.ActionClaim, nil)
	f.action("C1", "bob", orphan.ActionClaim, nil)

	if items := listVisible(t, repo, "bob", org.ID); containsID(items, "C1") {
		t.Fatalf("bob sees C1 while alice holds a claim")
	}
	if items := listVisible(t, repo, "alice", org.ID); containsID(items, "C1") {
		t.Fatalf("alice sees C1 while bob holds a claim")
	}
}

func TestListVisibleIgnoreIsLocal(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)

	org := f.org("rg-1")
	f.orphan(org.ID, "C1", "1111111111", 100)
	f.action("C1", "alice", orphan.ActionIgnore, nil)

	if items := listVisible(t, repo, "alice", org.ID); containsID(items, "C1") {
		t.Fatalf("alice sees C1 she ignored")
	}
	items := listVisible(t, repo, "bob", org.ID)
	if !containsID(items, "C1") {
		t.Fatalf("bob visible = %v, want C1", visibleIDs(items))
	}
	if items[0].Action != "" {
		t.Fatalf("bob action = %q, want empty", items[0].Action)
	}
}

func TestListVisibleIgnoresExpiredLocks(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)

	org := f.org("rg-1")
	f.orphan(org.ID, "C1", "1111111111", 100)
	f.orphan(org.ID, "C2", "2222222222", 100)
	f.action("C1", "alice", orphan.ActionClaim, ms(testNow-1))
	f.action("C2", "bob", orphan.ActionIgnore, ms(testNow))

	bob := listVisible(t, repo, "bob", org.ID)
	if !containsID(bob, "C1") || !containsID(bob, "C2") {
		t.Fatalf("bob visible = %v, want C1 and C2", visibleIDs(bob))
	}
	alice := listVisible(t, repo, "alice", org.ID)
	for _, item := range alice {
		if item.Action != "" {
			t.Fatalf("expired claim still reported for %s", item.ID)
		}
	}
}

func TestListVisibleFoldsRosterState(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)

	org := f.org("rg-1")
	alpha := f.unit(org.ID, "alpha")
	bravo := f.unit(org.ID, "bravo")

	// D1 left alpha.
	f.history(alpha.ID, "1000000001", orphan.ChangeAdded, 10)
	f.history(alpha.ID, "1000000001", orphan.ChangeDeleted, 20)
	f.orphan(org.ID, "D1", "1000000001", 100)

	// D2 was added and deleted at the same instant; deletion wins.
	f.history(alpha.ID, "1000000002", orphan.ChangeAdded, 30)
	f.history(alpha.ID, "1000000002", orphan.ChangeDeleted, 30)
	f.orphan(org.ID, "D2", "1000000002", 100)

	// A1 left alpha but is still in bravo.
	f.history(alpha.ID, "1000000003", orphan.ChangeDeleted, 40)
	active := f.history(bravo.ID, "1000000003", orphan.ChangeAdded, 35)
	f.orphan(org.ID, "A1", "1000000003", 100)

	// A2 never appeared on any roster.
	f.orphan(org.ID, "A2", "1000000004", 100)

	items := listVisible(t, repo, "alice", org.ID)
	if containsID(items, "D1") || containsID(items, "D2") {
		t.Fatalf("departed subjects visible: %v", visibleIDs(items))
	}
	if !containsID(items, "A1") || !containsID(items, "A2") {
		t.Fatalf("visible = %v, want A1 and A2", visibleIDs(items))
	}

	for _, item := range items {
		switch item.ID {
		case "A1":
			if item.UnitID == nil || *item.UnitID != bravo.ID {
				t.Fatalf("A1 unit hint = %v, want %d", item.UnitID, bravo.ID)
			}
			if item.RosterHistoryID == nil || *item.RosterHistoryID != active.ID {
				t.Fatalf("A1 history hint = %v, want %d", item.RosterHistoryID, active.ID)
			}
		case "A2":
			if item.UnitID != nil {
				t.Fatalf("A2 unit hint = %v, want nil", *item.UnitID)
			}
		}
	}
}

func TestListVisibleScopesToOrgAndLiveRows(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)

	org := f.org("rg-1")
	other := f.org("rg-2")
	f.orphan(org.ID, "C1", "1111111111", 100)
	f.orphan(other.ID, "X1", "3333333333", 100)
	gone := f.orphan(org.ID, "C2", "2222222222", 100)
	if err := db.Delete(&gone).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	items := listVisible(t, repo, "alice", org.ID)
	if len(items) != 1 || items[0].ID != "C1" {
		t.Fatalf("visible = %v, want [C1]", visibleIDs(items))
	}
}

func TestPurgeActionsRemovesOwnAndExpired(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)
	ctx := context.Background()

	f.action("C1", "alice", orphan.ActionClaim, nil)
	f.action("C1", "bob", orphan.ActionIgnore, nil)
	f.action("C2", "carol", orphan.ActionClaim, ms(testNow-5))
	f.action("C3", "dave", orphan.ActionClaim, ms(testNow+5))

	removed, err := repo.PurgeActions(ctx, ports.ActionPurge{
		CompositeID: "C1",
		UserID:      "alice",
		ExpiredAt:   orphan.FromMillis(testNow),
	})
	if err != nil {
		t.Fatalf("PurgeActions() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("PurgeActions() removed = %d, want 2", removed)
	}

	var left []model.OrphanedRecordAction
	if err := db.Order("composite_id asc").Find(&left).Error; err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(left) != 2 || left[0].UserID != "bob" || left[1].UserID != "dave" {
		t.Fatalf("remaining actions = %+v", left)
	}
}

func TestPurgeActionsMatchesType(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)
	ctx := context.Background()

	f.action("C1", "alice", orphan.ActionIgnore, nil)

	removed, err := repo.PurgeActions(ctx, ports.ActionPurge{CompositeID: "C1", UserID: "alice", Type: orphan.ActionClaim})
	if err != nil {
		t.Fatalf("PurgeActions() error = %v", err)
	}
	if removed != 0 {
		t.Fatalf("PurgeActions(claim) removed = %d, want 0", removed)
	}

	removed, err = repo.PurgeActions(ctx, ports.ActionPurge{CompositeID: "C1", UserID: "alice", Type: orphan.ActionIgnore})
	if err != nil {
		t.Fatalf("PurgeActions() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("PurgeActions(ignore) removed = %d, want 1", removed)
	}
}

func TestSoftDeleteCompositeOnlyOnce(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)
	ctx := context.Background()

	org := f.org("rg-1")
	other := f.org("rg-2")
	row := f.orphan(org.ID, "C1", "1111111111", 100)
	foreign := f.orphan(other.ID, "C1", "1111111111", 100)

	first, err := repo.SoftDeleteComposite(ctx, org.ID, "C1", orphan.FromMillis(testNow))
	if err != nil {
		t.Fatalf("SoftDeleteComposite() error = %v", err)
	}
	if first != 1 {
		t.Fatalf("first SoftDeleteComposite() = %d, want 1", first)
	}

	second, err := repo.SoftDeleteComposite(ctx, org.ID, "C1", orphan.FromMillis(testNow+1))
	if err != nil {
		t.Fatalf("SoftDeleteComposite() error = %v", err)
	}
	if second != 0 {
		t.Fatalf("second SoftDeleteComposite() = %d, want 0", second)
	}

	live, err := repo.ListLiveByComposite(ctx, org.ID, "C1")
	if err != nil {
		t.Fatalf("ListLiveByComposite() error = %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("live rows after delete = %d", len(live))
	}

	var stored model.OrphanedRecord
	if err := db.Unscoped().Where("id = ?", row.ID).Take(&stored).Error; err != nil {
		t.Fatalf("load deleted row: %v", err)
	}
	if int64(stored.DeletedOn) != testNow {
		t.Fatalf("deleted_on = %d, want %d", stored.DeletedOn, testNow)
	}

	live, err = repo.ListLiveByComposite(ctx, other.ID, "C1")
	if err != nil {
		t.Fatalf("ListLiveByComposite(other org) error = %v", err)
	}
	if len(live) != 1 || live[0].ID != foreign.ID || live[0].DeletedOn != nil {
		t.Fatalf("other org rows = %+v, want %d live", live, foreign.ID)
	}
}

func TestSoftDeleteMarksRowsInUnixMillis(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)
	ctx := context.Background()

	org := f.org("rg-1")
	f.orphan(org.ID, "C1", "1111111111", 100)

	var raw int64
	if err := db.Raw("SELECT deleted_on FROM orphaned_records WHERE composite_id = ?", "C1").Scan(&raw).Error; err != nil {
		t.Fatalf("read deleted_on: %v", err)
	}
	if raw != 0 {
		t.Fatalf("live deleted_on = %d, want 0", raw)
	}

	if _, err := repo.SoftDeleteComposite(ctx, org.ID, "C1", orphan.FromMillis(testNow)); err != nil {
		t.Fatalf("SoftDeleteComposite() error = %v", err)
	}
	if err := db.Raw("SELECT deleted_on FROM orphaned_records WHERE composite_id = ?", "C1").Scan(&raw).Error; err != nil {
		t.Fatalf("read deleted_on: %v", err)
	}
	if raw != testNow {
		t.Fatalf("deleted_on = %d, want %d", raw, testNow)
	}

	var row model.OrphanedRecord
	if err := db.Unscoped().Where("composite_id = ?", "C1").Take(&row).Error; err != nil {
		t.Fatalf("load deleted row: %v", err)
	}
	record := mapOrphanedRecord(row)
	if record.DeletedOn == nil || orphan.ToMillis(*record.DeletedOn) != testNow {
		t.Fatalf("mapped deletedOn = %v, want %d", record.DeletedOn, testNow)
	}
}

func TestEarliestReportIncludesDeletedRows(t *testing.T) {
	db := setupDB(t)
	f := fixture{t: t, db: db}
	repo := NewOrphanRepository(db)
	ctx := context.Background()

	org := f.org("rg-1")
	old := f.orphan(org.ID, "C1", "1111111111", 100)
	f.orphan(org.ID, "C1", "1111111111", 150)
	if err := db.Delete(&old).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	earliest, err := repo.EarliestReport(ctx, org.ID, "C1")
	if err != nil {
		t.Fatalf("EarliestReport() error = %v", err)
	}
	if orphan.ToMillis(earliest) != 100 {
		t.Fatalf("EarliestReport() = %d, want 100", orphan.ToMillis(earliest))
	}

	if _, err := repo.EarliestReport(ctx, org.ID, "missing"); err == nil {
		t.Fatalf("EarliestReport(missing) expected error")
	}
	if _, err := repo.EarliestReport(ctx, org.ID+1, "C1"); err == nil {
		t.Fatalf("EarliestReport(other org) expected error")
	}
}

func TestReingestIntentLifecycle(t *testing.T) {
	db := setupDB(t)
	repo := NewOrphanRepository(db)
	ctx := context.Background()

	created := orphan.FromMillis(testNow)
	if err := repo.CreateReingestIntent(ctx, ports.ReingestIntent{
		ID:          "intent-1",
		CompositeID: "C1",
		DocumentID:  "doc-1",
		Status:      orphan.ReingestPending,
		CreatedAt:   created,
		UpdatedAt:   created,
	}); err != nil {
		t.Fatalf("CreateReingestIntent() error = %v", err)
	}

	items, err := repo.ListRetryableReingestIntents(ctx, created, 10)
	if err != nil {
		t.Fatalf("ListRetryableReingestIntents() error = %v", err)
	}
	if len(items) != 1 || items[0].DocumentID != "doc-1" {
		t.Fatalf("retryable = %+v", items)
	}

	if err := repo.MarkReingestIntent(ctx, "intent-1", orphan.ReingestSucceeded, "", created.Add(time.Second)); err != nil {
		t.Fatalf("MarkReingestIntent() error = %v", err)
	}
	items, err = repo.ListRetryableReingestIntents(ctx, created.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("ListRetryableReingestIntents() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("succeeded intent still retryable: %+v", items)
	}

	if err := repo.MarkReingestIntent(ctx, "missing", orphan.ReingestFailed, "x", created); err == nil {
		t.Fatalf("MarkReingestIntent(missing) expected error")
	}
}
