package repository

import (
	"context"

	"casedesk/internal/models"
	"casedesk/internal/observability"

	"gorm.io/gorm"
)

// ReportRepository defines the interface for report data operations
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	// Update writes every mutable column when the stored version still equals report.Version,
	// then advances report.Version.
	Update(ctx context.Context, report *models.Report) error
	Delete(ctx context.Context, id string, version int64) error
	Find(ctx context.Context, filter models.ReportFilter, page models.PageRequest) ([]*models.Report, int64, error)
	Stream(ctx context.Context, filter models.ReportFilter, fn func(*models.Report) error) error
}

// reportRepository implements ReportRepository
type reportRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db, log: observability.NewRepoLogger("reports")}
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.Version == 0 {
		report.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(report).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return classifyError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"report_id": report.ID, "owner_id": report.OwnerID})
	return nil
}

func (r *reportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) Update(ctx context.Context, report *models.Report) error {
	expected := report.Version
	res := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ? AND version = ?", report.ID, expected).
		Updates(map[string]interface{}{
			"title":        report.Title,
			"description":  report.Description,
			"status":       report.Status,
			"priority":     report.Priority,
			"category":     report.Category,
			"submitted_at": report.SubmittedAt,
			"reviewed_at":  report.ReviewedAt,
			"reviewed_by":  report.ReviewedBy,
			"review_notes": report.ReviewNotes,
			"archived_at":  report.ArchivedAt,
			"updated_at":   report.UpdatedAt,
			"version":      expected + 1,
		})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	report.Version = expected + 1
	r.log.LogUpdate(ctx, map[string]interface{}{
		"report_id": report.ID,
		"status":    report.Status,
		"version":   report.Version,
	})
	return nil
}

func (r *reportRepository) Delete(ctx context.Context, id string, version int64) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND version = ?", id, version).
		Delete(&models.Report{})
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return classifyError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	r.log.LogDelete(ctx, map[string]interface{}{"report_id": id})
	return nil
}

func (r *reportRepository) Find(ctx context.Context, filter models.ReportFilter, page models.PageRequest) ([]*models.Report, int64, error) {
	ctx, span := observability.GetTraceLayer().TraceQuery(ctx, "Find", "reports", r.db.Dialector.Name())
	defer span.End()

	page = page.Normalize()

	var total int64
	if err := applyReportFilter(r.db.WithContext(ctx).Model(&models.Report{}), filter).
		Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, 0, err
	}

	reports := make([]*models.Report, 0, page.PageSize)
	if total == 0 {
		return reports, 0, nil
	}
	err := applyReportFilter(r.db.WithContext(ctx), filter).
		Order("created_at DESC").
		Order("id DESC").
		Limit(page.PageSize).
		Offset(page.Offset()).
		Find(&reports).Error
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	return reports, total, nil
}

// Stream walks every matching report in list order without materializing the result set.
func (r *reportRepository) Stream(ctx context.Context, filter models.ReportFilter, fn func(*models.Report) error) error {
	ctx, span := observability.GetTraceLayer().TraceQuery(ctx, "Stream", "reports", r.db.Dialector.Name())
	defer span.End()

	db := r.db.WithContext(ctx)
	rows, err := applyReportFilter(db.Model(&models.Report{}), filter).
		Order("created_at DESC").
		Order("id DESC").
		Rows()
	if err != nil {
		span.RecordError(err)
		return err
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var report models.Report
		if err := db.ScanRows(rows, &report); err != nil {
			return err
		}
		if err := fn(&report); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	r.log.LogRead(ctx, map[string]interface{}{"stream": true, "rows": count})
	return nil
}

func applyReportFilter(q *gorm.DB, f models.ReportFilter) *gorm.DB {
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Category != "" {
		q = q.Where("LOWER(category) LIKE ? ESCAPE '!'", containsPattern(f.Category))
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", *f.CreatedTo)
	}
	if f.Text != "" {
		like := containsPattern(f.Text)
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", like, like)
	}
	return q
}
