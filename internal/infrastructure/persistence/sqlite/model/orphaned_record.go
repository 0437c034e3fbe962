package model

import "gorm.io/plugin/soft_delete"

type OrphanedRecord struct {
	ID          uint64                `gorm:"column:id;primaryKey;autoIncrement"`
	CompositeID string                `gorm:"column:composite_id;size:64;not null;index"`
	DocumentID  string                `gorm:"column:document_id;size:255;not null;index"`
	EDIPI       string                `gorm:"column:edipi;size:32;not null;index"`
	Phone       string                `gorm:"column:phone;size:64;not null"`
	Unit        string                `gorm:"column:unit;size:255;not null"`
	Timestamp   int64                 `gorm:"column:timestamp;not null"`
	OrgID       uint64                `gorm:"column:org_id;not null;index"`
	// DeletedOn is unix millis like every other instant; zero marks a live row.
	DeletedOn   soft_delete.DeletedAt `gorm:"column:deleted_on;softDelete:milli;index"`
}

func (OrphanedRecord) TableName() string {
	return "orphaned_records"
}

// OrphanedRecordAction is keyed by (composite_id, user_id): one action per user per group.
type OrphanedRecordAction struct {
	CompositeID string `gorm:"column:composite_id;size:64;primaryKey"`
	UserID      string `gorm:"column:user_id;size:64;primaryKey"`
	Type        string `gorm:"column:type;size:16;not null"`
	ExpiresOn   *int64 `gorm:"column:expires_on;index"`
}

func (OrphanedRecordAction) TableName() string {
	return "orphaned_record_actions"
}
