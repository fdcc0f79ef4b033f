package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"casedesk/internal/middleware"
	"casedesk/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// mapServiceError picks the HTTP status for an error returned by a service.
func mapServiceError(err error) int {
	appErr, ok := models.AsAppError(err)
	if !ok {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeForbidden:
		return fiber.StatusForbidden
	case models.CodeValidation, models.CodeInvalidState:
		return fiber.StatusBadRequest
	case models.CodeConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// respondServiceError writes err with its mapped status.
func respondServiceError(c *fiber.Ctx, err error) error {
	return models.RespondWithError(c, mapServiceError(err), err)
}

// currentActor returns the authenticated actor. On failure it writes a 401 and
// returns errResponseWritten.
func currentActor(c *fiber.Ctx) (models.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		_ = models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
		return models.Actor{}, errResponseWritten
	}
	return actor, nil
}

// parseID extracts a route parameter by name as a UUID string.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func (s *Server) parseID(c *fiber.Ctx, param string) (string, error) {
	raw := strings.TrimSpace(c.Params(param))
	id, err := uuid.Parse(raw)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return "", errResponseWritten
	}
	return id.String(), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "reportId" -> "report ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		words := splitCamel(param[:len(param)-2])
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// parsePage reads page and page_size query parameters. Out-of-range values are clamped later.
func parsePage(c *fiber.Ctx) models.PageRequest {
	return models.PageRequest{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", models.DefaultPageSize),
	}.Normalize()
}

// parseIfMatch reads the expected report version from If-Match. A missing header yields 0,
// which skips the version check. Accepted forms: 3, "3", W/"3".
func parseIfMatch(c *fiber.Ctx) (int64, error) {
	raw := strings.TrimSpace(c.Get(fiber.HeaderIfMatch))
	if raw == "" || raw == "*" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("If-Match must carry a positive report version"))
		return 0, errResponseWritten
	}
	return version, nil
}

// setETag advertises the report version for the next conditional request.
func setETag(c *fiber.Ctx, r *models.Report) {
	c.Set(fiber.HeaderETag, fmt.Sprintf(`"%d"`, r.Version))
}

// parseReportFilter reads the search filter from the query string.
func parseReportFilter(c *fiber.Ctx) (models.ReportFilter, error) {
	filter := models.ReportFilter{
		OwnerID:  strings.TrimSpace(c.Query("owner_id")),
		Category: strings.TrimSpace(c.Query("category")),
		Text:     strings.TrimSpace(c.Query("q")),
	}

	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseReportStatus(raw)
		if !ok {
			return filter, badRequest(c, "Unknown status "+strconv.Quote(raw))
		}
		filter.Status = status
	}
	if raw := c.Query("priority"); raw != "" {
		priority, ok := models.ParseReportPriority(raw)
		if !ok {
			return filter, badRequest(c, "Unknown priority "+strconv.Quote(raw))
		}
		filter.Priority = priority
	}

	for _, bound := range []struct {
		param string
		dst   **time.Time
		upper bool
	}{
		{"created_from", &filter.CreatedFrom, false},
		{"created_to", &filter.CreatedTo, true},
	} {
		raw := c.Query(bound.param)
		if raw == "" {
			continue
		}
		t, err := parseTimeParam(raw, bound.upper)
		if err != nil {
			return filter, badRequest(c, bound.param+" must be RFC 3339 or YYYY-MM-DD")
		}
		*bound.dst = &t
	}

	return filter, nil
}

// parseTimeParam accepts RFC 3339 or a bare date. A bare date used as an upper bound
// means the last instant of that day.
func parseTimeParam(raw string, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return t, err
	}
	if upper {
		t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
	}
	return t, nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(msg))
	return errResponseWritten
}
