package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"casedesk/internal/authz"
	"casedesk/internal/cache"
	"casedesk/internal/models"
	"casedesk/internal/observability"
	"casedesk/internal/repository"
	"casedesk/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxTitleLen       = 300
	maxDescriptionLen = 50000
	maxCategoryLen    = 100
	maxReviewNotesLen = 10000
)

// ReportService runs the report lifecycle commands.
type ReportService struct {
	store repository.Store
	uow   repository.UnitOfWork
	files storage.FileStore
	now   func() time.Time
}

type CreateReportInput struct {
	Title       string
	Description string
	Category    string
	Priority    string
}

type UpdateReportInput struct {
	ReportID    string
	Title       string
	Description string
	Category    string
	// Priority keeps the current value when empty.
	Priority string
	// ExpectedVersion, when non-zero, must match the stored version.
	ExpectedVersion int64
}

type ReviewReportInput struct {
	ReportID        string
	Decision        models.ReportStatus
	Notes           string
	ExpectedVersion int64
}

func NewReportService(store repository.Store, uow repository.UnitOfWork, files storage.FileStore) *ReportService {
	return &ReportService{
		store: store,
		uow:   uow,
		files: files,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateReport opens a new Draft owned by actor.
func (s *ReportService) CreateReport(ctx context.Context, actor models.Actor, in CreateReportInput) (*models.Report, error) {
	span, ctx := observability.NewSpan(ctx, "ReportService.CreateReport")
	defer span.End()

	if actor.ID == "" {
		return nil, s.fail(ctx, CommandCreate, models.NewUnauthorizedError("Authentication required"))
	}
	priority, err := validateReportFields(in.Title, in.Description, in.Category, in.Priority)
	if err != nil {
		return nil, s.fail(ctx, CommandCreate, err)
	}
	if priority == "" {
		priority = models.ReportPriorityNormal
	}

	now := s.now()
	report := &models.Report{
		Base:        models.Base{CreatedAt: now, UpdatedAt: now},
		Title:       in.Title,
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Priority:    priority,
		Status:      models.ReportStatusDraft,
		OwnerID:     actor.ID,
	}

	err = s.uow.Do(ctx, func(tx repository.Store) error {
		if err := tx.Reports().Create(ctx, report); err != nil {
			return err
		}
		return tx.Events().Append(ctx, &models.ReportEvent{
			ReportID:  report.ID,
			ActorID:   actor.ID,
			Action:    models.ReportActionCreate,
			ToStatus:  report.Status,
			Details:   datatypes.JSONMap{"priority": string(report.Priority)},
			CreatedAt: now,
		})
	})
	if err != nil {
		span.SetError(err)
		return nil, s.fail(ctx, CommandCreate, toAppError(err, "Report", report.ID))
	}

	span.AddAttributes(attribute.String("report.id", report.ID))
	observability.ReportTransitions.WithLabelValues(string(CommandCreate), string(report.Status)).Inc()
	return report, nil
}

// UpdateReport replaces the editable fields of a Draft or Returned report.
func (s *ReportService) UpdateReport(ctx context.Context, actor models.Actor, in UpdateReportInput) (*models.Report, error) {
	return s.transition(ctx, CommandUpdate, in.ReportID, actor, in.ExpectedVersion, func(r *models.Report, _ time.Time) (*models.ReportEvent, error) {
		priority, err := validateReportFields(in.Title, in.Description, in.Category, in.Priority)
		if err != nil {
			return nil, err
		}
		changed := changedFields(r, in, priority)

		r.Title = in.Title
		r.Description = in.Description
		r.Category = strings.TrimSpace(in.Category)
		if priority != "" {
			r.Priority = priority
		}
		return &models.ReportEvent{
			Action:  models.ReportActionUpdate,
			Details: datatypes.JSONMap{"changed": changed},
		}, nil
	})
}

// SubmitReport hands a Draft or Returned report to reviewers. Title and Description must not be blank.
// Notes from an earlier review are kept until the next review overwrites them.
func (s *ReportService) SubmitReport(ctx context.Context, actor models.Actor, reportID string, expectedVersion int64) (*models.Report, error) {
	return s.transition(ctx, CommandSubmit, reportID, actor, expectedVersion, func(r *models.Report, now time.Time) (*models.ReportEvent, error) {
		if strings.TrimSpace(r.Title) == "" {
			return nil, models.NewValidationError("Title is required before submission")
		}
		if strings.TrimSpace(r.Description) == "" {
			return nil, models.NewValidationError("Description is required before submission")
		}
		r.Status = models.ReportStatusSubmitted
		r.SubmittedAt = &now
		return &models.ReportEvent{Action: models.ReportActionSubmit}, nil
	})
}

// ReviewReport records a reviewer decision on a Submitted report.
func (s *ReportService) ReviewReport(ctx context.Context, actor models.Actor, in ReviewReportInput) (*models.Report, error) {
	return s.transition(ctx, CommandReview, in.ReportID, actor, in.ExpectedVersion, func(r *models.Report, now time.Time) (*models.ReportEvent, error) {
		if !isReviewOutcome(in.Decision) {
			return nil, models.NewValidationError("Decision must be one of Approved, Rejected or Returned")
		}
		if len(in.Notes) > maxReviewNotesLen {
			return nil, models.NewValidationError("Review notes too long (max 10000 characters)")
		}
		r.Status = in.Decision
		r.ReviewedAt = &now
		r.ReviewedBy = actor.ID
		r.ReviewNotes = in.Notes
		return &models.ReportEvent{
			Action: models.ReportActionReview,
			Notes:  in.Notes,
		}, nil
	})
}

// ArchiveReport moves a resolved report to its administrative end state.
func (s *ReportService) ArchiveReport(ctx context.Context, actor models.Actor, reportID string, expectedVersion int64) (*models.Report, error) {
	return s.transition(ctx, CommandArchive, reportID, actor, expectedVersion, func(r *models.Report, now time.Time) (*models.ReportEvent, error) {
		r.Status = models.ReportStatusArchived
		r.ArchivedAt = &now
		return &models.ReportEvent{Action: models.ReportActionArchive}, nil
	})
}

// DeleteReport destroys a Draft together with its attachments. Stored files go first;
// a file that is already gone is skipped, any other storage error aborts with nothing deleted
// from the database. Only the attachments whose files were removed are deleted; if another
// attachment arrived meanwhile the command fails with CONFLICT and the report stays.
func (s *ReportService) DeleteReport(ctx context.Context, actor models.Actor, reportID string, expectedVersion int64) error {
	span, ctx := observability.NewSpan(ctx, "ReportService.DeleteReport", attribute.String("report.id", reportID))
	defer span.End()

	report, err := s.loadForCommand(ctx, s.store, CommandDelete, reportID, actor, expectedVersion)
	if err != nil {
		span.SetError(err)
		return s.fail(ctx, CommandDelete, err)
	}

	attachments, err := s.store.Attachments().ListByReport(ctx, report.ID)
	if err != nil {
		return s.fail(ctx, CommandDelete, models.NewInternalError(err))
	}
	for _, a := range attachments {
		if err := s.files.Delete(ctx, a.StorageKey); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				slog.WarnContext(ctx, "attachment file already absent",
					slog.String("attachment_id", a.ID),
					slog.String("report_id", report.ID))
				continue
			}
			span.SetError(err)
			return s.fail(ctx, CommandDelete, models.NewStorageError(err))
		}
	}

	err = s.uow.Do(ctx, func(tx repository.Store) error {
		if _, err := s.loadForCommand(ctx, tx, CommandDelete, reportID, actor, report.Version); err != nil {
			return err
		}
		current, err := tx.Attachments().ListByReport(ctx, report.ID)
		if err != nil {
			return err
		}
		if !sameAttachments(current, attachments) {
			return models.NewConflictError("Report", reportID)
		}
		if err := tx.Attachments().DeleteMany(ctx, report.ID, attachmentIDs(attachments)); err != nil {
			return err
		}
		if err := tx.Events().DeleteByReport(ctx, report.ID); err != nil {
			return err
		}
		return tx.Reports().Delete(ctx, report.ID, report.Version)
	})
	if err != nil {
		span.SetError(err)
		return s.fail(ctx, CommandDelete, toAppError(err, "Report", reportID))
	}

	cache.InvalidateReport(ctx, report.ID)
	observability.ReportTransitions.WithLabelValues(string(CommandDelete), "deleted").Inc()
	return nil
}

// GetReport returns a report visible to actor: its owner or any reviewer.
func (s *ReportService) GetReport(ctx context.Context, actor models.Actor, reportID string) (*models.Report, error) {
	var report models.Report
	err := cache.Aside(ctx, cache.ReportKey(reportID), &report, cache.ReportTTL, func() error {
		found, err := s.store.Reports().GetByID(ctx, reportID)
		if err != nil {
			return err
		}
		report = *found
		return nil
	})
	if err != nil {
		return nil, toAppError(err, "Report", reportID)
	}
	if !authz.CanAccessReport(&report, actor) {
		return nil, models.NewUnauthorizedError("Not allowed to view this report")
	}
	return &report, nil
}

// GetReportHistory lists the committed commands of a report, oldest first.
func (s *ReportService) GetReportHistory(ctx context.Context, actor models.Actor, reportID string) ([]*models.ReportEvent, error) {
	report, err := s.store.Reports().GetByID(ctx, reportID)
	if err != nil {
		return nil, toAppError(err, "Report", reportID)
	}
	if !authz.CanAccessReport(report, actor) {
		return nil, models.NewUnauthorizedError("Not allowed to view this report")
	}
	events, err := s.store.Events().ListByReport(ctx, reportID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return events, nil
}

// mutation edits the loaded report in memory and describes the history row to append.
type mutation func(r *models.Report, now time.Time) (*models.ReportEvent, error)

// transition loads, checks, mutates and persists a report in one unit of work.
func (s *ReportService) transition(ctx context.Context, cmd Command, reportID string, actor models.Actor, expectedVersion int64, mutate mutation) (*models.Report, error) {
	span, ctx := observability.NewSpan(ctx, "ReportService."+string(cmd),
		attribute.String("report.id", reportID),
		attribute.String("actor.role", string(actor.Role)),
	)
	defer span.End()

	var result *models.Report
	err := s.uow.Do(ctx, func(tx repository.Store) error {
		report, err := s.loadForCommand(ctx, tx, cmd, reportID, actor, 0)
		if err != nil {
			return err
		}
		from := report.Status
		now := s.now()

		event, err := mutate(report, now)
		if err != nil {
			return err
		}
		if expectedVersion != 0 && expectedVersion != report.Version {
			return models.NewConflictError("Report", reportID)
		}

		report.UpdatedAt = now
		if err := tx.Reports().Update(ctx, report); err != nil {
			return err
		}

		event.ReportID = report.ID
		event.ActorID = actor.ID
		event.FromStatus = from
		event.ToStatus = report.Status
		event.CreatedAt = now
		if err := tx.Events().Append(ctx, event); err != nil {
			return err
		}
		result = report
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, s.fail(ctx, cmd, toAppError(err, "Report", reportID))
	}

	cache.InvalidateReport(ctx, result.ID)
	observability.ReportTransitions.WithLabelValues(string(cmd), string(result.Status)).Inc()
	return result, nil
}

// loadForCommand fetches a report and applies the checks shared by every command,
// in order: existence, status, actor, then the optional version token.
func (s *ReportService) loadForCommand(ctx context.Context, store repository.Store, cmd Command, reportID string, actor models.Actor, expectedVersion int64) (*models.Report, error) {
	report, err := store.Reports().GetByID(ctx, reportID)
	if err != nil {
		return nil, toAppError(err, "Report", reportID)
	}
	if !CanTransition(cmd, report.Status) {
		return nil, models.NewInvalidStateError(string(cmd), report.Status)
	}
	if err := authorizeCommand(cmd, report, actor); err != nil {
		return nil, err
	}
	if expectedVersion != 0 && expectedVersion != report.Version {
		return nil, models.NewConflictError("Report", reportID)
	}
	return report, nil
}

func (s *ReportService) fail(ctx context.Context, cmd Command, err error) error {
	code := models.CodeInternal
	if appErr, ok := models.AsAppError(err); ok {
		code = appErr.Code
	}
	observability.ReportCommandFailures.WithLabelValues(string(cmd), code).Inc()
	if code == models.CodeInternal || code == models.CodeStorageFailure {
		slog.ErrorContext(ctx, "report command failed",
			slog.String("command", string(cmd)),
			slog.String("error", err.Error()))
	}
	return err
}

func validateReportFields(title, description, category, rawPriority string) (models.ReportPriority, error) {
	if len(title) > maxTitleLen {
		return "", models.NewValidationError("Title too long (max 300 characters)")
	}
	if len(description) > maxDescriptionLen {
		return "", models.NewValidationError("Description too long (max 50000 characters)")
	}
	if len(strings.TrimSpace(category)) > maxCategoryLen {
		return "", models.NewValidationError("Category too long (max 100 characters)")
	}
	if strings.TrimSpace(rawPriority) == "" {
		return "", nil
	}
	priority, ok := models.ParseReportPriority(rawPriority)
	if !ok {
		return "", models.NewValidationError("Priority must be one of Low, Normal, High or Critical")
	}
	return priority, nil
}

func changedFields(r *models.Report, in UpdateReportInput, priority models.ReportPriority) []string {
	var changed []string
	if r.Title != in.Title {
		changed = append(changed, "title")
	}
	if r.Description != in.Description {
		changed = append(changed, "description")
	}
	if r.Category != strings.TrimSpace(in.Category) {
		changed = append(changed, "category")
	}
	if priority != "" && r.Priority != priority {
		changed = append(changed, "priority")
	}
	return changed
}

func attachmentIDs(attachments []*models.Attachment) []string {
	ids := make([]string, len(attachments))
	for i, a := range attachments {
		ids[i] = a.ID
	}
	return ids
}

func sameAttachments(a, b []*models.Attachment) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, x := range a {
		seen[x.ID] = struct{}{}
	}
	for _, y := range b {
		if _, ok := seen[y.ID]; !ok {
			return false
		}
	}
	return true
}

// toAppError maps repository and driver errors onto the application error taxonomy.
func toAppError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if _, ok := models.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(resource, id)
	case errors.Is(err, repository.ErrStaleVersion), errors.Is(err, repository.ErrReferenced):
		return models.NewConflictError(resource, id)
	default:
		return models.NewInternalError(err)
	}
}
