package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories bound to one database handle.
type Store interface {
	Reports() ReportRepository
	Attachments() AttachmentRepository
	Events() ReportEventRepository
}

// UnitOfWork runs fn against a transactional Store. Returning nil commits; any error
// (or a cancelled context) rolls every write back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(Store) error) error
}

type store struct {
	reports     ReportRepository
	attachments AttachmentRepository
	events      ReportEventRepository
}

// NewStore binds all repositories to db.
func NewStore(db *gorm.DB) Store {
	return &store{
		reports:     NewReportRepository(db),
		attachments: NewAttachmentRepository(db),
		events:      NewReportEventRepository(db),
	}
}

func (s *store) Reports() ReportRepository         { return s.reports }
func (s *store) Attachments() AttachmentRepository { return s.attachments }
func (s *store) Events() ReportEventRepository     { return s.events }

type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork creates a UnitOfWork backed by gorm transactions.
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

func (u *gormUnitOfWork) Do(ctx context.Context, fn func(Store) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(NewStore(tx)); err != nil {
			return err
		}
		return ctx.Err()
	})
}
