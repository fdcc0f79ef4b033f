package server

import (
	"strings"

	"casedesk/internal/models"
	"casedesk/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ReportRequest is the editable content of a report.
type ReportRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Priority    string `json:"priority" example:"Normal"`
}

// ReportHistoryResponse lists the committed commands of a report.
type ReportHistoryResponse struct {
	ReportID string                `json:"report_id"`
	Events   []*models.ReportEvent `json:"events"`
}

// CreateReport handles POST /api/reports
// @Summary Create a report
// @Description Opens a new Draft report owned by the caller
// @Tags reports
// @Accept json
// @Produce json
// @Param request body ReportRequest true "Report content"
// @Success 201 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reports [post]
func (s *Server) CreateReport(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}

	var req ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	report, err := s.reports.CreateReport(c.UserContext(), actor, service.CreateReportInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    req.Priority,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	setETag(c, report)
	return c.Status(fiber.StatusCreated).JSON(report)
}

// GetMyReports handles GET /api/reports
// @Summary List my reports
// @Description Pages through the caller's own reports, newest first
// @Tags reports
// @Produce json
// @Param page query int false "Page number (1-based)"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} models.PagedResult[models.Report]
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reports [get]
func (s *Server) GetMyReports(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}

	page, err := s.queries.GetUserReports(c.UserContext(), actor.ID, parsePage(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(page)
}

// GetReport handles GET /api/reports/:id
// @Summary Get a report
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} models.Report
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reports/{id} [get]
func (s *Server) GetReport(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	report, err := s.reports.GetReport(c.UserContext(), actor, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	setETag(c, report)
	return c.JSON(report)
}

// UpdateReport handles PUT /api/reports/:id
// @Summary Update a report
// @Description Replaces the editable fields of a Draft or Returned report. Send If-Match with the last seen version to guard against lost updates.
// @Tags reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param If-Match header string false "Expected report version"
// @Param request body ReportRequest true "Report content"
// @Success 200 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reports/{id} [put]
func (s *Server) UpdateReport(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	version, err := parseIfMatch(c)
	if err != nil {
		return nil
	}

	var req ReportRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	report, err := s.reports.UpdateReport(c.UserContext(), actor, service.UpdateReportInput{
		ReportID:        id,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Priority:        req.Priority,
		ExpectedVersion: version,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	setETag(c, report)
	return c.JSON(report)
}

// SubmitReport handles POST /api/reports/:id/submit
// @Summary Submit a report for review
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Param If-Match header string false "Expected report version"
// @Success 200 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reports/{id}/submit [post]
func (s *Server) SubmitReport(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	version, err := parseIfMatch(c)
	if err != nil {
		return nil
	}

	report, err := s.reports.SubmitReport(c.UserContext(), actor, id, version)
	if err != nil {
		return respondServiceError(c, err)
	}
	setETag(c, report)
	return c.JSON(report)
}

// DeleteReport handles DELETE /api/reports/:id
// @Summary Delete a draft report
// @Description Deletes a Draft together with its attachments
// @Tags reports
// @Param id path string true "Report ID"
// @Param If-Match header string false "Expected report version"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reports/{id} [delete]
func (s *Server) DeleteReport(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	version, err := parseIfMatch(c)
	if err != nil {
		return nil
	}

	if err := s.reports.DeleteReport(c.UserContext(), actor, id, version); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetReportHistory handles GET /api/reports/:id/history
// @Summary Report history
// @Description Lists every committed command on the report, oldest first
// @Tags reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} ReportHistoryResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reports/{id}/history [get]
func (s *Server) GetReportHistory(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	events, err := s.reports.GetReportHistory(c.UserContext(), actor, id)
	if err != nil {
		return respondServiceError(c, err)
	}
	if events == nil {
		events = []*models.ReportEvent{}
	}
	return c.JSON(ReportHistoryResponse{ReportID: id, Events: events})
}

// ReviewRequest carries a reviewer decision.
type ReviewRequest struct {
	Decision string `json:"decision" example:"Approved" enums:"Approved,Rejected,Returned"`
	Notes    string `json:"notes"`
}

// ReviewReport handles POST /api/admin/reports/:id/review
// @Summary Review a submitted report
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param If-Match header string false "Expected report version"
// @Param request body ReviewRequest true "Decision"
// @Success 200 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports/{id}/review [post]
func (s *Server) ReviewReport(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	version, err := parseIfMatch(c)
	if err != nil {
		return nil
	}

	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	decision, ok := models.ParseReportStatus(req.Decision)
	if !ok {
		decision = models.ReportStatus(strings.TrimSpace(req.Decision))
	}

	report, err := s.reports.ReviewReport(c.UserContext(), actor, service.ReviewReportInput{
		ReportID:        id,
		Decision:        decision,
		Notes:           req.Notes,
		ExpectedVersion: version,
	})
	if err != nil {
		return respondServiceError(c, err)
	}
	setETag(c, report)
	return c.JSON(report)
}

// ArchiveReport handles POST /api/admin/reports/:id/archive
// @Summary Archive a resolved report
// @Tags admin
// @Produce json
// @Param id path string true "Report ID"
// @Param If-Match header string false "Expected report version"
// @Success 200 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports/{id}/archive [post]
func (s *Server) ArchiveReport(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	version, err := parseIfMatch(c)
	if err != nil {
		return nil
	}

	report, err := s.reports.ArchiveReport(c.UserContext(), actor, id, version)
	if err != nil {
		return respondServiceError(c, err)
	}
	setETag(c, report)
	return c.JSON(report)
}
