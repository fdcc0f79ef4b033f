package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"casedesk/internal/authz"
	"casedesk/internal/models"
	"casedesk/internal/observability"
	"casedesk/internal/repository"
	"casedesk/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

var errTooLarge = errors.New("attachment exceeds size limit")

// AttachmentService stores files against reports. Attachment lookups never reveal whether a
// report or attachment exists to an actor who may not see it.
type AttachmentService struct {
	store   repository.Store
	uow     repository.UnitOfWork
	files   storage.FileStore
	maxSize int64
	now     func() time.Time
}

type UploadAttachmentInput struct {
	ReportID    string
	FileName    string
	ContentType string
	// Size is the declared length; zero or negative when unknown.
	Size    int64
	Content io.Reader
}

func NewAttachmentService(store repository.Store, uow repository.UnitOfWork, files storage.FileStore) *AttachmentService {
	return &AttachmentService{
		store:   store,
		uow:     uow,
		files:   files,
		maxSize: models.MaxAttachmentSize,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// UploadAttachment streams the content into the file store and registers it against the report.
// The row is written in a unit of work that re-reads the report, so an upload racing a report
// delete either lands before the delete (which then conflicts) or fails with NOT_FOUND.
func (s *AttachmentService) UploadAttachment(ctx context.Context, actor models.Actor, in UploadAttachmentInput) (*models.Attachment, error) {
	span, ctx := observability.NewSpan(ctx, "AttachmentService.UploadAttachment",
		attribute.String("report.id", in.ReportID),
		attribute.Int64("attachment.declared_size", in.Size),
	)
	defer span.End()

	report, err := s.store.Reports().GetByID(ctx, in.ReportID)
	if err != nil {
		return nil, s.fail("upload", toAppError(err, "Report", in.ReportID))
	}
	if !authz.CanAccessReport(report, actor) {
		return nil, s.fail("upload", models.NewNotFoundError("Report", in.ReportID))
	}

	fileName := filepath.Base(strings.TrimSpace(in.FileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return nil, s.fail("upload", models.NewValidationError("File name is required"))
	}
	if in.Size > s.maxSize {
		return nil, s.fail("upload", models.NewValidationError("File too large (max 10 MiB)"))
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	if _, ok := models.AllowedAttachmentExtensions[ext]; !ok {
		return nil, s.fail("upload", models.NewValidationError("File type ."+ext+" is not allowed"))
	}
	if in.Content == nil {
		return nil, s.fail("upload", models.NewValidationError("File content is required"))
	}

	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = mime.TypeByExtension("." + ext)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	hash := sha256.New()
	body := io.TeeReader(&limitedReader{r: in.Content, remaining: s.maxSize}, hash)
	key, written, err := s.files.Put(ctx, body, storage.ObjectInfo{
		FileName:    fileName,
		ContentType: contentType,
		Size:        -1,
	})
	if err != nil {
		span.SetError(err)
		switch {
		case errors.Is(err, errTooLarge):
			return nil, s.fail("upload", models.NewValidationError("File too large (max 10 MiB)"))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, s.fail("upload", err)
		default:
			return nil, s.fail("upload", models.NewStorageError(err))
		}
	}

	if in.Size > 0 && written != in.Size {
		s.discard(ctx, key)
		return nil, s.fail("upload", models.NewValidationError("Uploaded content does not match declared size"))
	}
	if err := ctx.Err(); err != nil {
		s.discard(ctx, key)
		return nil, s.fail("upload", err)
	}

	attachment := &models.Attachment{
		Base:        models.Base{CreatedAt: s.now(), UpdatedAt: s.now()},
		ReportID:    report.ID,
		FileName:    fileName,
		ContentType: contentType,
		FileSize:    written,
		StorageKey:  key,
		Checksum:    hex.EncodeToString(hash.Sum(nil)),
		UploadedBy:  actor.ID,
	}
	// The report may have been deleted while the bytes were streaming.
	err = s.uow.Do(ctx, func(tx repository.Store) error {
		if _, err := tx.Reports().GetByID(ctx, report.ID); err != nil {
			return err
		}
		return tx.Attachments().Create(ctx, attachment)
	})
	if err != nil {
		span.SetError(err)
		s.discard(ctx, key)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, repository.ErrReferenced):
			return nil, s.fail("upload", models.NewNotFoundError("Report", in.ReportID))
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, s.fail("upload", err)
		default:
			return nil, s.fail("upload", models.NewInternalError(err))
		}
	}

	observability.AttachmentBytes.Observe(float64(written))
	observability.AttachmentOperations.WithLabelValues("upload", "ok").Inc()
	slog.InfoContext(ctx, "attachment uploaded",
		slog.String("attachment_id", attachment.ID),
		slog.String("report_id", report.ID),
		slog.Int64("size", written))
	return attachment, nil
}

// DownloadAttachment opens the stored bytes of an attachment. The caller closes the reader.
func (s *AttachmentService) DownloadAttachment(ctx context.Context, actor models.Actor, attachmentID string) (*models.Attachment, io.ReadCloser, error) {
	span, ctx := observability.NewSpan(ctx, "AttachmentService.DownloadAttachment", attribute.String("attachment.id", attachmentID))
	defer span.End()

	attachment, err := s.visibleAttachment(ctx, actor, attachmentID)
	if err != nil {
		return nil, nil, s.fail("download", err)
	}

	getCtx, getSpan := observability.GetTraceLayer().TraceStorage(ctx, "get", attachment.StorageKey)
	rc, err := s.files.Get(getCtx, attachment.StorageKey)
	getSpan.End()
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			slog.WarnContext(ctx, "attachment row without stored object",
				slog.String("attachment_id", attachment.ID))
			return nil, nil, s.fail("download", models.NewNotFoundError("Attachment", attachmentID))
		}
		span.SetError(err)
		return nil, nil, s.fail("download", models.NewStorageError(err))
	}
	observability.AttachmentOperations.WithLabelValues("download", "ok").Inc()
	return attachment, rc, nil
}

// DeleteAttachment removes the stored bytes, then the row. A store failure other than
// absence keeps the row so the delete can be retried.
func (s *AttachmentService) DeleteAttachment(ctx context.Context, actor models.Actor, attachmentID string) error {
	span, ctx := observability.NewSpan(ctx, "AttachmentService.DeleteAttachment", attribute.String("attachment.id", attachmentID))
	defer span.End()

	attachment, err := s.visibleAttachment(ctx, actor, attachmentID)
	if err != nil {
		return s.fail("delete", err)
	}

	delCtx, delSpan := observability.GetTraceLayer().TraceStorage(ctx, "delete", attachment.StorageKey)
	err = s.files.Delete(delCtx, attachment.StorageKey)
	delSpan.End()
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			span.SetError(err)
			return s.fail("delete", models.NewStorageError(err))
		}
		slog.WarnContext(ctx, "attachment file already absent",
			slog.String("attachment_id", attachment.ID),
			slog.String("storage_key", attachment.StorageKey))
	}

	if err := s.store.Attachments().Delete(ctx, attachment.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.fail("delete", models.NewNotFoundError("Attachment", attachmentID))
		}
		span.SetError(err)
		return s.fail("delete", models.NewInternalError(err))
	}
	observability.AttachmentOperations.WithLabelValues("delete", "ok").Inc()
	return nil
}

// ListAttachments returns the attachments of a report, oldest first.
func (s *AttachmentService) ListAttachments(ctx context.Context, actor models.Actor, reportID string) ([]*models.Attachment, error) {
	report, err := s.store.Reports().GetByID(ctx, reportID)
	if err != nil {
		return nil, toAppError(err, "Report", reportID)
	}
	if !authz.CanAccessReport(report, actor) {
		return nil, models.NewNotFoundError("Report", reportID)
	}
	attachments, err := s.store.Attachments().ListByReport(ctx, reportID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return attachments, nil
}

// visibleAttachment loads an attachment the actor may see. Missing rows, missing reports
// and denied access all look the same.
func (s *AttachmentService) visibleAttachment(ctx context.Context, actor models.Actor, attachmentID string) (*models.Attachment, error) {
	attachment, err := s.store.Attachments().GetByID(ctx, attachmentID)
	if err != nil {
		return nil, toAppError(err, "Attachment", attachmentID)
	}
	report, err := s.store.Reports().GetByID(ctx, attachment.ReportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Attachment", attachmentID)
		}
		return nil, models.NewInternalError(err)
	}
	if !authz.CanAccessReport(report, actor) {
		return nil, models.NewNotFoundError("Attachment", attachmentID)
	}
	return attachment, nil
}

// discard removes an object written by a failed upload, even when ctx is already cancelled.
func (s *AttachmentService) discard(ctx context.Context, key string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		slog.ErrorContext(ctx, "failed to remove orphaned attachment object",
			slog.String("storage_key", key),
			slog.String("error", err.Error()))
	}
}

func (s *AttachmentService) fail(operation string, err error) error {
	outcome := "error"
	if appErr, ok := models.AsAppError(err); ok {
		outcome = strings.ToLower(appErr.Code)
	}
	observability.AttachmentOperations.WithLabelValues(operation, outcome).Inc()
	return err
}

// limitedReader fails with errTooLarge once more than remaining bytes have been read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errTooLarge
	}
	return n, err
}
