package server

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"casedesk/internal/middleware"
	"casedesk/internal/models"
	"casedesk/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SearchReports handles GET /api/admin/reports
// @Summary Search reports
// @Description Filters across all owners. Reviewer role required.
// @Tags admin
// @Produce json
// @Param status query string false "Status"
// @Param priority query string false "Priority"
// @Param category query string false "Category"
// @Param owner_id query string false "Owner ID"
// @Param q query string false "Substring of title or description"
// @Param created_from query string false "Inclusive lower bound (RFC 3339 or YYYY-MM-DD)"
// @Param created_to query string false "Inclusive upper bound (RFC 3339, or YYYY-MM-DD for the whole day)"
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} models.PagedResult[models.Report]
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports [get]
func (s *Server) SearchReports(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	filter, err := parseReportFilter(c)
	if err != nil {
		return nil
	}

	page, err := s.queries.SearchReports(c.UserContext(), actor, filter, parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// ExportReports handles GET /api/admin/reports/export
// @Summary Export reports
// @Description Streams every report matching the filter as csv, json or yaml. Reviewer role required.
// @Tags admin
// @Produce text/csv
// @Produce json
// @Produce application/yaml
// @Param format query string false "csv (default), json or yaml"
// @Param status query string false "Status"
// @Param priority query string false "Priority"
// @Param category query string false "Category"
// @Param owner_id query string false "Owner ID"
// @Param q query string false "Substring of title or description"
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports/export [get]
func (s *Server) ExportReports(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	filter, err := parseReportFilter(c)
	if err != nil {
		return nil
	}

	format := strings.ToLower(strings.TrimSpace(c.Query("format", service.ExportCSV)))
	if format == "yml" {
		format = service.ExportYAML
	}

	var buf strings.Builder
	sink, err := service.NewReportSink(format, &buf)
	if err != nil {
		return respondServiceError(c, err)
	}

	count, err := s.queries.ExportReports(c.UserContext(), actor, filter, sink)
	if err != nil {
		return respondServiceError(c, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "reports exported",
		slog.String("format", format),
		slog.Int("count", count),
	)

	filename := fmt.Sprintf("reports-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	c.Set(fiber.HeaderContentType, service.ExportContentType(format))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Set("X-Export-Count", fmt.Sprintf("%d", count))
	return c.SendString(buf.String())
}
