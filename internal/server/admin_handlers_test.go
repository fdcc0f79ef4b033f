package server

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"casedesk/internal/middleware"
	"casedesk/internal/models"
	"casedesk/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// MockReportRepository is a mock implementation of repository.ReportRepository
type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

func (m *MockReportRepository) Update(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) Delete(ctx context.Context, id string, version int64) error {
	args := m.Called(ctx, id, version)
	return args.Error(0)
}

func (m *MockReportRepository) Find(ctx context.Context, filter models.ReportFilter, page models.PageRequest) ([]*models.Report, int64, error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*models.Report), args.Get(1).(int64), args.Error(2)
}

func (m *MockReportRepository) Stream(ctx context.Context, filter models.ReportFilter, fn func(*models.Report) error) error {
	args := m.Called(ctx, filter, fn)
	if rows, ok := args.Get(0).([]*models.Report); ok {
		for _, r := range rows {
			if err := fn(r); err != nil {
				return err
			}
		}
	}
	return args.Error(1)
}

// newMockQueryApp serves the admin query handlers over a mocked repository, as actor.
func newMockQueryApp(repo *MockReportRepository, actor models.Actor) *fiber.App {
	s := &Server{config: newTestConfig(), queries: service.NewQueryService(repo)}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		middleware.SetActor(c, actor)
		return c.Next()
	})
	app.Get("/api/admin/reports", s.SearchReports)
	app.Get("/api/admin/reports/export", s.ExportReports)
	return app
}

func TestSearchReports(t *testing.T) {
	ts := newTestServer(t)
	ts.submitted(t, alice, "Gas smell in lab 3")
	ts.createReport(t, alice, "Loose cable")
	ts.submitted(t, bob, "Gas cylinder unsecured")
	today := time.Now().UTC().Format(time.DateOnly)

	tests := []struct {
		name     string
		query    string
		expected int64
	}{
		{"everything", "", 3},
		{"by status", "?status=Submitted", 2},
		{"by owner", "?owner_id=" + alice.ID, 2},
		{"by text", "?q=gas", 2},
		{"combined", "?status=submitted&owner_id=" + bob.ID, 1},
		{"by priority", "?priority=Low", 0},
		{"created today by date", "?created_from=" + today + "&created_to=" + today, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/reports"+tt.query, nil), reviewer)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			page := decode[models.PagedResult[models.Report]](t, resp)
			assert.Equal(t, tt.expected, page.TotalCount)
			assert.Len(t, page.Items, int(tt.expected))
		})
	}

	t.Run("inverted date range", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet,
			"/api/admin/reports?created_from=2026-03-01&created_to=2026-02-01", nil), reviewer)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeValidation, errorCode(t, resp))
	})

	t.Run("unknown status", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/reports?status=Lost", nil), reviewer)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("plain user", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/reports", nil), alice)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, models.CodeForbidden, errorCode(t, resp))
	})
}

func TestSearchReports_RepositoryFailure(t *testing.T) {
	repo := new(MockReportRepository)
	repo.On("Find", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, int64(0), errors.New("connection reset"))

	app := newMockQueryApp(repo, reviewer)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/reports", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, models.CodeInternal, body.Code)
	assert.NotContains(t, body.Details, "connection reset")
	repo.AssertExpectations(t)
}

func TestSearchReports_ServiceStillChecksRole(t *testing.T) {
	repo := new(MockReportRepository)
	app := newMockQueryApp(repo, alice)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/reports", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	repo.AssertNotCalled(t, "Find", mock.Anything, mock.Anything, mock.Anything)
}

func TestExportReports(t *testing.T) {
	ts := newTestServer(t)
	first := ts.submitted(t, alice, "Export, with comma")
	ts.createReport(t, bob, "Second")

	t.Run("csv by default", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/reports/export", nil), reviewer)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv", resp.Header.Get(fiber.HeaderContentType))
		assert.Regexp(t, `^attachment; filename="reports-\d{8}-\d{6}\.csv"$`, resp.Header.Get(fiber.HeaderContentDisposition))
		assert.Equal(t, "2", resp.Header.Get("X-Export-Count"))

		records, err := csv.NewReader(resp.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "id", records[0][0])
		assert.Equal(t, "version", records[0][len(records[0])-1])
	})

	t.Run("json with filter", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/reports/export?format=json&status=Submitted", nil), admin)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get(fiber.HeaderContentType))
		assert.Equal(t, "1", resp.Header.Get("X-Export-Count"))

		var rows []service.ExportRow
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
		require.Len(t, rows, 1)
		assert.Equal(t, first.ID, rows[0].ID)
		assert.Equal(t, "Export, with comma", rows[0].Title)
		assert.NotEmpty(t, rows[0].SubmittedAt)
	})

	t.Run("yml alias", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/reports/export?format=yml&owner_id="+bob.ID, nil), reviewer)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/yaml", resp.Header.Get(fiber.HeaderContentType))
		assert.True(t, strings.HasSuffix(resp.Header.Get(fiber.HeaderContentDisposition), `.yaml"`))

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		var rows []service.ExportRow
		require.NoError(t, yaml.Unmarshal(raw, &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "Second", rows[0].Title)
	})

	t.Run("empty result", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/reports/export?format=json&category=none", nil), reviewer)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "0", resp.Header.Get("X-Export-Count"))
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(raw))
	})

	t.Run("unsupported format", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/reports/export?format=xml", nil), reviewer)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeValidation, errorCode(t, resp))
	})

	t.Run("plain user", func(t *testing.T) {
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/admin/reports/export", nil), alice)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestExportReports_StreamFailure(t *testing.T) {
	repo := new(MockReportRepository)
	repo.On("Stream", mock.Anything, mock.Anything, mock.Anything).
		Return([]*models.Report{{Base: models.Base{ID: "r1"}, Title: "partial"}}, errors.New("cursor closed"))

	app := newMockQueryApp(repo, reviewer)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/admin/reports/export?format=csv", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("X-Export-Count"))
	assert.Empty(t, resp.Header.Get(fiber.HeaderContentDisposition))
	repo.AssertExpectations(t)
}
