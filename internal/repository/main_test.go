package repository

import (
	"testing"
	"time"

	"casedesk/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newReport(owner string, createdAt time.Time, mutate ...func(*models.Report)) *models.Report {
	r := &models.Report{
		Base:        models.Base{CreatedAt: createdAt, UpdatedAt: createdAt},
		Title:       "Title",
		Description: "Description",
		Status:      models.ReportStatusDraft,
		Priority:    models.ReportPriorityNormal,
		OwnerID:     owner,
	}
	for _, m := range mutate {
		m(r)
	}
	return r
}
