package repository

import (
	"context"

	"casedesk/internal/models"
	"casedesk/internal/observability"

	"gorm.io/gorm"
)

// AttachmentRepository defines the interface for attachment data operations
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
	ListByReport(ctx context.Context, reportID string) ([]*models.Attachment, error)
	Delete(ctx context.Context, id string) error
	// DeleteMany removes exactly the listed attachments of a report. If any of them is
	// already gone nothing is removed and ErrStaleVersion is returned.
	DeleteMany(ctx context.Context, reportID string, ids []string) error
}

type attachmentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db, log: observability.NewRepoLogger("attachments")}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return classifyError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{
		"attachment_id": attachment.ID,
		"report_id":     attachment.ReportID,
		"size":          attachment.FileSize,
	})
	return nil
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	var attachment models.Attachment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&attachment).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

func (r *attachmentRepository) ListByReport(ctx context.Context, reportID string) ([]*models.Attachment, error) {
	var attachments []*models.Attachment
	err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&attachments).Error
	return attachments, err
}

// Delete returns gorm.ErrRecordNotFound when no row matched.
func (r *attachmentRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Attachment{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.log.LogDelete(ctx, map[string]interface{}{"attachment_id": id})
	return nil
}

func (r *attachmentRepository) DeleteMany(ctx context.Context, reportID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("report_id = ? AND id IN ?", reportID, ids).Delete(&models.Attachment{})
		if res.Error != nil {
			r.log.LogError(ctx, res.Error, "delete")
			return classifyError(res.Error)
		}
		if res.RowsAffected != int64(len(ids)) {
			return ErrStaleVersion
		}
		r.log.LogDelete(ctx, map[string]interface{}{"report_id": reportID, "rows": res.RowsAffected})
		return nil
	})
}
