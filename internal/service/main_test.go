package service

import (
	"context"
	"testing"
	"time"

	"casedesk/internal/models"
	"casedesk/internal/repository"
	"casedesk/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	owner    = models.Actor{ID: "user-1", Role: models.RoleUser}
	stranger = models.Actor{ID: "user-2", Role: models.RoleUser}
	reviewer = models.Actor{ID: "sup-1", Role: models.RoleSupervisor}
	admin    = models.Actor{ID: "admin-1", Role: models.RoleAdministrator}
)

var fixedNow = time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

type testEnv struct {
	db          *gorm.DB
	store       repository.Store
	files       *testutil.MemoryFileStore
	reports     *ReportService
	attachments *AttachmentService
	queries     *QueryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	store := repository.NewStore(db)
	files := testutil.NewMemoryFileStore()

	reports := NewReportService(store, repository.NewUnitOfWork(db), files)
	reports.now = func() time.Time { return fixedNow }
	attachments := NewAttachmentService(store, repository.NewUnitOfWork(db), files)
	attachments.now = func() time.Time { return fixedNow }

	return &testEnv{
		db:          db,
		store:       store,
		files:       files,
		reports:     reports,
		attachments: attachments,
		queries:     NewQueryService(store.Reports()),
	}
}

// draft creates a complete Draft report owned by owner.
func (e *testEnv) draft(t *testing.T) *models.Report {
	t.Helper()
	r, err := e.reports.CreateReport(context.Background(), owner, CreateReportInput{
		Title:       "Quarterly filing",
		Description: "Late disclosure of holdings",
		Category:    "disclosure",
	})
	require.NoError(t, err)
	return r
}

func (e *testEnv) submitted(t *testing.T) *models.Report {
	t.Helper()
	r := e.draft(t)
	r, err := e.reports.SubmitReport(context.Background(), owner, r.ID, 0)
	require.NoError(t, err)
	return r
}

func (e *testEnv) reload(t *testing.T, id string) *models.Report {
	t.Helper()
	r, err := e.store.Reports().GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok, "expected *models.AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}
