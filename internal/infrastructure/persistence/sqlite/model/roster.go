package model

type Roster struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	OrgID     uint64 `gorm:"column:org_id;not null;index"`
	UnitID    uint64 `gorm:"column:unit_id;not null;uniqueIndex:idx_rosters_unit_edipi,priority:1"`
	EDIPI     string `gorm:"column:edipi;size:32;not null;uniqueIndex:idx_rosters_unit_edipi,priority:2"`
	FirstName string `gorm:"column:first_name;size:255;not null"`
	LastName  string `gorm:"column:last_name;size:255;not null"`
	Phone     string `gorm:"column:phone;size:64;not null"`
	CreatedOn int64  `gorm:"column:created_on;not null"`
}

func (Roster) TableName() string {
	return "rosters"
}

// RosterHistory rows are appended on every membership change. Timestamp is unix millis.
type RosterHistory struct {
	ID         uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	UnitID     uint64 `gorm:"column:unit_id;not null;index:idx_roster_history_unit_edipi,priority:1"`
	EDIPI      string `gorm:"column:edipi;size:32;not null;index:idx_roster_history_unit_edipi,priority:2"`
	ChangeType string `gorm:"column:change_type;size:16;not null"`
	Timestamp  int64  `gorm:"column:timestamp;not null;index"`
}

func (RosterHistory) TableName() string {
	return "roster_history"
}
