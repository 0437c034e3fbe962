package model

type Org struct {
	ID             uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Name           string `gorm:"column:name;size:255;not null"`
	ReportingGroup string `gorm:"column:reporting_group;size:255;not null;uniqueIndex"`
}

func (Org) TableName() string {
	return "orgs"
}

type Unit struct {
	ID    uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	OrgID uint64 `gorm:"column:org_id;not null;index"`
	Name  string `gorm:"column:name;size:255;not null"`
}

func (Unit) TableName() string {
	return "units"
}
