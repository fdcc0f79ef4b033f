package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReportAction names a command recorded in a report's history.
type ReportAction string

const (
	ReportActionCreate  ReportAction = "create"
	ReportActionUpdate  ReportAction = "update"
	ReportActionSubmit  ReportAction = "submit"
	ReportActionReview  ReportAction = "review"
	ReportActionArchive ReportAction = "archive"
)

// ReportEvent is an append-only history row written alongside every committed report command.
type ReportEvent struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ReportID   string            `gorm:"type:varchar(36);not null;index" json:"report_id"`
	ActorID    string            `gorm:"size:64;not null" json:"actor_id"`
	Action     ReportAction      `gorm:"size:20;not null" json:"action"`
	FromStatus ReportStatus      `gorm:"size:20;not null;default:''" json:"from_status,omitempty"`
	ToStatus   ReportStatus      `gorm:"size:20;not null" json:"to_status"`
	Notes      string            `gorm:"type:text;not null" json:"notes,omitempty"`
	Details    datatypes.JSONMap `json:"details,omitempty"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

// TableName returns the database table name for ReportEvent.
func (ReportEvent) TableName() string {
	return "report_events"
}
