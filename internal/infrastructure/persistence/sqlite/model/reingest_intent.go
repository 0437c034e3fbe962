package model

type ReingestIntent struct {
	ID          string `gorm:"column:id;size:36;primaryKey"`
	CompositeID string `gorm:"column:composite_id;size:64;not null;index"`
	DocumentID  string `gorm:"column:document_id;size:255;not null"`
	Status      string `gorm:"column:status;size:16;not null;index"`
	Attempts    int    `gorm:"column:attempts;not null"`
	LastError   string `gorm:"column:last_error;type:text"`
	CreatedOn   int64  `gorm:"column:created_on;not null"`
	UpdatedOn   int64  `gorm:"column:updated_on;not null;index"`
}

func (ReingestIntent) TableName() string {
	return "reingest_intents"
}

// All lists every table the schema migration creates.
func All() []any {
	return []any{
		&Org{},
		&Unit{},
		&Roster{},
		&RosterHistory{},
		&OrphanedRecord{},
		&OrphanedRecordAction{},
		&ReingestIntent{},
	}
}
