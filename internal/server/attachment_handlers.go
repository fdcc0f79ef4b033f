package server

import (
	"mime"

	"casedesk/internal/models"
	"casedesk/internal/service"

	"github.com/gofiber/fiber/v2"
)

// AttachmentListResponse lists the attachments of a report.
type AttachmentListResponse struct {
	ReportID    string               `json:"report_id"`
	Attachments []*models.Attachment `json:"attachments"`
}

// UploadAttachment handles POST /api/reports/:id/attachments
// @Summary Upload an attachment
// @Description Stores a file against a report. Allowed extensions: pdf, doc, docx, xls, xlsx, txt, jpg, jpeg, png, gif, zip. Max 10 MiB.
// @Tags attachments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Report ID"
// @Param file formData file true "File to attach"
// @Success 201 {object} models.Attachment
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reports/{id}/attachments [post]
func (s *Server) UploadAttachment(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	reportID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	file, err := c.FormFile("file")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	attachment, err := s.attachments.UploadAttachment(c.UserContext(), actor, service.UploadAttachmentInput{
		ReportID:    reportID,
		FileName:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Size:        file.Size,
		Content:     src,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(attachment)
}

// ListAttachments handles GET /api/reports/:id/attachments
// @Summary List attachments
// @Tags attachments
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} AttachmentListResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /reports/{id}/attachments [get]
func (s *Server) ListAttachments(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	reportID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	attachments, err := s.attachments.ListAttachments(c.UserContext(), actor, reportID)
	if err != nil {
		return respondServiceError(c, err)
	}
	if attachments == nil {
		attachments = []*models.Attachment{}
	}
	return c.JSON(AttachmentListResponse{ReportID: reportID, Attachments: attachments})
}

// DownloadAttachment handles GET /api/attachments/:id
// @Summary Download an attachment
// @Description Streams the stored file. Attachments of reports the caller cannot see are reported as not found.
// @Tags attachments
// @Produce octet-stream
// @Param id path string true "Attachment ID"
// @Success 200 {file} file
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /attachments/{id} [get]
func (s *Server) DownloadAttachment(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	attachment, content, err := s.attachments.DownloadAttachment(c.UserContext(), actor, id)
	if err != nil {
		return respondServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, attachment.ContentType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{
		"filename": attachment.FileName,
	}))
	c.Set("X-Checksum-SHA256", attachment.Checksum)
	// fasthttp closes content once the body is written
	return c.SendStream(content, int(attachment.FileSize))
}

// DeleteAttachment handles DELETE /api/attachments/:id
// @Summary Delete an attachment
// @Description Removes the stored file, then the attachment record. Report owner or reviewer.
// @Tags attachments
// @Param id path string true "Attachment ID"
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /attachments/{id} [delete]
func (s *Server) DeleteAttachment(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.attachments.DeleteAttachment(c.UserContext(), actor, id); err != nil {
		return respondServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
