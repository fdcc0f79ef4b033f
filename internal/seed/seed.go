package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"casedesk/internal/middleware"
	"casedesk/internal/models"
	"casedesk/internal/repository"
	"casedesk/internal/service"
	"casedesk/internal/storage"

	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	Owners          int
	Reviewers       int
	ReportsPerOwner int
	WithAttachments bool
	// DryRun builds the data and logs it without writing anything.
	DryRun bool
	// RandSeed makes runs reproducible; zero picks a random seed.
	RandSeed int64
}

// Summary counts what a run created.
type Summary struct {
	Reports     int
	Attachments int
	ByStatus    map[models.ReportStatus]int
}

// Seeder writes demo data through the report services.
type Seeder struct {
	db          *gorm.DB
	files       storage.FileStore
	reports     *service.ReportService
	attachments *service.AttachmentService
	factory     *Factory
	opts        Options
}

// NewSeeder wires a Seeder over db and files.
func NewSeeder(db *gorm.DB, files storage.FileStore, opts Options) *Seeder {
	store := repository.NewStore(db)
	uow := repository.NewUnitOfWork(db)
	if opts.Owners <= 0 {
		opts.Owners = 5
	}
	if opts.Reviewers <= 0 {
		opts.Reviewers = 2
	}
	if opts.ReportsPerOwner <= 0 {
		opts.ReportsPerOwner = 8
	}
	return &Seeder{
		db:          db,
		files:       files,
		reports:     service.NewReportService(store, uow, files),
		attachments: service.NewAttachmentService(store, uow, files),
		factory:     NewFactory(opts.RandSeed),
		opts:        opts,
	}
}

// ClearAll removes every report, attachment and history row, plus stored attachment objects.
func (s *Seeder) ClearAll(ctx context.Context) error {
	if s.opts.DryRun {
		middleware.Logger.InfoContext(ctx, "[dry-run] skipping cleanup")
		return nil
	}

	var keys []string
	if err := s.db.WithContext(ctx).Model(&models.Attachment{}).Pluck("storage_key", &keys).Error; err != nil {
		return fmt.Errorf("list attachment keys: %w", err)
	}
	for _, key := range keys {
		if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			middleware.Logger.WarnContext(ctx, "failed to delete stored attachment",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.ReportEvent{}, &models.Attachment{}, &models.Report{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("clear %T: %w", model, err)
			}
		}
		return nil
	})
}

// Run creates Owners × ReportsPerOwner reports spread across the lifecycle.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	summary := Summary{ByStatus: map[models.ReportStatus]int{}}

	for o := 1; o <= s.opts.Owners; o++ {
		owner := s.factory.Owner(o)
		for i := 0; i < s.opts.ReportsPerOwner; i++ {
			reviewer := s.factory.Reviewer(1 + (o+i)%s.opts.Reviewers)
			target := s.factory.Outcome()
			in := s.factory.ReportInput()

			if s.opts.DryRun {
				middleware.Logger.InfoContext(ctx, "[dry-run] report",
					slog.String("owner", owner.ID),
					slog.String("title", in.Title),
					slog.String("target", string(target)),
				)
				summary.Reports++
				summary.ByStatus[target]++
				continue
			}

			report, err := s.reports.CreateReport(ctx, owner, in)
			if err != nil {
				return summary, fmt.Errorf("create report for %s: %w", owner.ID, err)
			}
			if s.opts.WithAttachments {
				if err := s.attach(ctx, owner, report.ID); err != nil {
					return summary, err
				}
				summary.Attachments++
			}

			report, err = s.drive(ctx, report, owner, reviewer, target)
			if err != nil {
				return summary, fmt.Errorf("drive report %s to %s: %w", report.ID, target, err)
			}
			summary.Reports++
			summary.ByStatus[report.Status]++
		}
	}

	middleware.Logger.InfoContext(ctx, "Seeding complete",
		slog.Int("reports", summary.Reports),
		slog.Int("attachments", summary.Attachments),
	)
	return summary, nil
}

// drive walks report through the commands that reach target.
func (s *Seeder) drive(ctx context.Context, report *models.Report, owner, reviewer models.Actor, target models.ReportStatus) (*models.Report, error) {
	if target == models.ReportStatusDraft {
		return report, nil
	}

	report, err := s.reports.SubmitReport(ctx, owner, report.ID, report.Version)
	if err != nil || target == models.ReportStatusSubmitted {
		return report, err
	}

	decision := target
	if target == models.ReportStatusArchived {
		decision = models.ReportStatusApproved
	}
	report, err = s.reports.ReviewReport(ctx, reviewer, service.ReviewReportInput{
		ReportID:        report.ID,
		Decision:        decision,
		Notes:           s.factory.ReviewNotes(),
		ExpectedVersion: report.Version,
	})
	if err != nil {
		return report, err
	}

	if target == models.ReportStatusArchived {
		return s.reports.ArchiveReport(ctx, reviewer, report.ID, report.Version)
	}
	return report, nil
}

func (s *Seeder) attach(ctx context.Context, owner models.Actor, reportID string) error {
	name, body := s.factory.Attachment()
	_, err := s.attachments.UploadAttachment(ctx, owner, service.UploadAttachmentInput{
		ReportID: reportID,
		FileName: name,
		Size:     int64(len(body)),
		Content:  strings.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("attach %s to %s: %w", name, reportID, err)
	}
	return nil
}
