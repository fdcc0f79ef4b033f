package repository

import (
	"context"

	"casedesk/internal/models"

	"gorm.io/gorm"
)

// ReportEventRepository appends and lists report history rows.
type ReportEventRepository interface {
	Append(ctx context.Context, event *models.ReportEvent) error
	ListByReport(ctx context.Context, reportID string) ([]*models.ReportEvent, error)
	DeleteByReport(ctx context.Context, reportID string) error
}

type reportEventRepository struct {
	db *gorm.DB
}

// NewReportEventRepository creates a new report history repository
func NewReportEventRepository(db *gorm.DB) ReportEventRepository {
	return &reportEventRepository{db: db}
}

func (r *reportEventRepository) Append(ctx context.Context, event *models.ReportEvent) error {
	return classifyError(r.db.WithContext(ctx).Create(event).Error)
}

func (r *reportEventRepository) ListByReport(ctx context.Context, reportID string) ([]*models.ReportEvent, error) {
	var events []*models.ReportEvent
	err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&events).Error
	return events, err
}

func (r *reportEventRepository) DeleteByReport(ctx context.Context, reportID string) error {
	return classifyError(r.db.WithContext(ctx).Where("report_id = ?", reportID).Delete(&models.ReportEvent{}).Error)
}
