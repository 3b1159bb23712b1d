package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records commerce and expedition events that must be reconstructable
// after the fact, such as shop sales and mailbox rescues.
type AuditLog struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID   string         `gorm:"index:idx_audit_trace;size:36;not null" json:"trace_id"`
	CharID    *int32         `gorm:"index:idx_audit_char" json:"char_id"`
	CharName  string         `gorm:"size:13" json:"char_name"`
	Action    string         `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Detail    datatypes.JSON `json:"detail"`
	Error     string         `gorm:"type:text" json:"error"`
	ChannelID int32          `json:"channel_id"`
	FieldID   int32          `json:"field_id"`
	CreatedAt time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
