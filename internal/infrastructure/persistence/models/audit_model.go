package models

import "time"

// AuditModel is the persisted record of one completed Trinity request
// (spec C14, §4.6 post-execution PERSIST step).
type AuditModel struct {
	ID        uint   `gorm:"primaryKey"`
	RequestID string `gorm:"index;size:64"`
	SessionID string `gorm:"index;size:64"`
	Prompt    string `gorm:"type:text"`
	Response  string `gorm:"type:text"`
	Tier      string `gorm:"size:16"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName 指定表名
func (AuditModel) TableName() string {
	return "audit_records"
}
