package models

import (
	"strings"
	"time"
)

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	ReportStatusDraft       ReportStatus = "Draft"
	ReportStatusSubmitted   ReportStatus = "Submitted"
	ReportStatusUnderReview ReportStatus = "UnderReview"
	ReportStatusApproved    ReportStatus = "Approved"
	ReportStatusRejected    ReportStatus = "Rejected"
	ReportStatusReturned    ReportStatus = "Returned"
	ReportStatusArchived    ReportStatus = "Archived"
)

// ReportStatuses lists every declared status in lifecycle order.
var ReportStatuses = []ReportStatus{
	ReportStatusDraft,
	ReportStatusSubmitted,
	ReportStatusUnderReview,
	ReportStatusApproved,
	ReportStatusRejected,
	ReportStatusReturned,
	ReportStatusArchived,
}

// Valid reports whether s is a declared status.
func (s ReportStatus) Valid() bool {
	for _, known := range ReportStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseReportStatus matches raw case-insensitively against the declared statuses.
func ParseReportStatus(raw string) (ReportStatus, bool) {
	for _, known := range ReportStatuses {
		if strings.EqualFold(string(known), strings.TrimSpace(raw)) {
			return known, true
		}
	}
	return "", false
}

// ReportPriority ranks how urgently a report needs attention.
type ReportPriority string

const (
	ReportPriorityLow      ReportPriority = "Low"
	ReportPriorityNormal   ReportPriority = "Normal"
	ReportPriorityHigh     ReportPriority = "High"
	ReportPriorityCritical ReportPriority = "Critical"
)

var reportPriorities = []ReportPriority{
	ReportPriorityLow,
	ReportPriorityNormal,
	ReportPriorityHigh,
	ReportPriorityCritical,
}

// ParseReportPriority matches raw case-insensitively; empty input yields Normal.
func ParseReportPriority(raw string) (ReportPriority, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ReportPriorityNormal, true
	}
	for _, known := range reportPriorities {
		if strings.EqualFold(string(known), raw) {
			return known, true
		}
	}
	return "", false
}

// Report is a regulated-entity case report moving through the review lifecycle.
type Report struct {
	Base
	Title       string         `gorm:"size:300;not null;default:''" json:"title"`
	Description string         `gorm:"type:text;not null" json:"description"`
	Status      ReportStatus   `gorm:"size:20;not null;index" json:"status"`
	Priority    ReportPriority `gorm:"size:20;not null" json:"priority"`
	Category    string         `gorm:"size:100;not null;default:''" json:"category,omitempty"`
	OwnerID     string         `gorm:"size:64;not null;index" json:"owner_id"`
	SubmittedAt *time.Time     `json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
	ReviewedBy  string         `gorm:"size:64;not null;default:''" json:"reviewed_by,omitempty"`
	ReviewNotes string         `gorm:"type:text;not null" json:"review_notes,omitempty"`
	ArchivedAt  *time.Time     `json:"archived_at,omitempty"`

	// Version increments on every committed mutation.
	Version int64 `gorm:"not null;default:1" json:"version"`
}

// TableName returns the database table name for Report.
func (Report) TableName() string {
	return "reports"
}
