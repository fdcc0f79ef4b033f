package service

import (
	"context"
	"log/slog"

	"casedesk/internal/authz"
	"casedesk/internal/models"
	"casedesk/internal/observability"
	"casedesk/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// QueryService answers read-only list, search and export requests.
type QueryService struct {
	reports repository.ReportRepository
}

func NewQueryService(reports repository.ReportRepository) *QueryService {
	return &QueryService{reports: reports}
}

// GetUserReports pages through the reports owned by userID, newest first.
func (s *QueryService) GetUserReports(ctx context.Context, userID string, page models.PageRequest) (models.PagedResult[*models.Report], error) {
	if userID == "" {
		return models.PagedResult[*models.Report]{}, models.NewUnauthorizedError("Authentication required")
	}
	return s.find(ctx, models.ReportFilter{OwnerID: userID}, page)
}

// SearchReports pages through all reports matching filter. Reviewers only.
func (s *QueryService) SearchReports(ctx context.Context, actor models.Actor, filter models.ReportFilter, page models.PageRequest) (models.PagedResult[*models.Report], error) {
	if !authz.IsReviewer(actor) {
		return models.PagedResult[*models.Report]{}, models.NewForbiddenError("Reviewer role required to search reports")
	}
	if err := validateFilter(filter); err != nil {
		return models.PagedResult[*models.Report]{}, err
	}
	return s.find(ctx, filter, page)
}

// ExportReports writes every report matching filter to sink, in search order.
func (s *QueryService) ExportReports(ctx context.Context, actor models.Actor, filter models.ReportFilter, sink ReportSink) (int, error) {
	span, ctx := observability.NewSpan(ctx, "QueryService.ExportReports")
	defer span.End()

	if !authz.IsReviewer(actor) {
		return 0, models.NewForbiddenError("Reviewer role required to export reports")
	}
	if err := validateFilter(filter); err != nil {
		return 0, err
	}

	count := 0
	err := s.reports.Stream(ctx, filter, func(r *models.Report) error {
		if err := sink.Write(r); err != nil {
			return err
		}
		count++
		return nil
	})
	if err == nil {
		err = sink.Flush()
	}
	if err != nil {
		span.SetError(err)
		slog.ErrorContext(ctx, "report export failed",
			slog.Int("written", count),
			slog.String("error", err.Error()))
		return count, models.NewInternalError(err)
	}

	span.AddAttributes(attribute.Int("export.rows", count))
	return count, nil
}

func (s *QueryService) find(ctx context.Context, filter models.ReportFilter, page models.PageRequest) (models.PagedResult[*models.Report], error) {
	page = page.Normalize()
	items, total, err := s.reports.Find(ctx, filter, page)
	if err != nil {
		return models.PagedResult[*models.Report]{}, models.NewInternalError(err)
	}
	return models.NewPagedResult(items, total, page), nil
}

func validateFilter(f models.ReportFilter) error {
	if f.Status != "" && !f.Status.Valid() {
		return models.NewValidationError("Unknown status filter")
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedFrom.After(*f.CreatedTo) {
		return models.NewValidationError("created_from must not be after created_to")
	}
	return nil
}
