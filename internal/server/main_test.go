package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"casedesk/internal/config"
	"casedesk/internal/middleware"
	"casedesk/internal/models"
	"casedesk/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

var (
	alice    = models.Actor{ID: "user-alice", Role: models.RoleUser}
	bob      = models.Actor{ID: "user-bob", Role: models.RoleUser}
	reviewer = models.Actor{ID: "sup-carol", Role: models.RoleSupervisor}
	admin    = models.Actor{ID: "admin-dave", Role: models.RoleAdministrator}
)

type testServer struct {
	srv   *Server
	app   *fiber.App
	db    *gorm.DB
	files *testutil.MemoryFileStore
}

func newTestConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		Port:           "0",
		JWTSecret:      testSecret,
		AllowedOrigins: "http://localhost:5173",
		StorageBackend: "disk",
	}
}

// newTestServer wires the real services over in-memory SQLite and file storage.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.NewSQLiteDB(t)
	files := testutil.NewMemoryFileStore()
	srv, err := NewServerWithDeps(newTestConfig(), db, nil, files)
	require.NoError(t, err)

	app := NewApp("casedesk-test", int(models.MaxAttachmentSize)+1<<20)
	srv.SetupRoutes(app)
	return &testServer{srv: srv, app: app, db: db, files: files}
}

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return gormDB, mock
}

func bearer(t *testing.T, actor models.Actor) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, actor, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

// do sends req as actor. A zero actor sends no token.
func (ts *testServer) do(t *testing.T, req *http.Request, actor models.Actor) *http.Response {
	t.Helper()
	if actor.ID != "" {
		req.Header.Set(fiber.HeaderAuthorization, bearer(t, actor))
	}
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	return decode[models.ErrorResponse](t, resp).Code
}

// createReport posts a complete report as actor and returns it.
func (ts *testServer) createReport(t *testing.T, actor models.Actor, title string) *models.Report {
	t.Helper()
	resp := ts.do(t, jsonRequest(t, http.MethodPost, "/api/reports", ReportRequest{
		Title:       title,
		Description: "Observed during the quarterly inspection.",
		Category:    "safety",
		Priority:    "High",
	}), actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	report := decode[models.Report](t, resp)
	return &report
}

// submitted creates and submits a report owned by actor.
func (ts *testServer) submitted(t *testing.T, actor models.Actor, title string) *models.Report {
	t.Helper()
	r := ts.createReport(t, actor, title)
	resp := ts.do(t, httptest.NewRequest(http.MethodPost, "/api/reports/"+r.ID+"/submit", nil), actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[models.Report](t, resp)
	return &report
}

func (ts *testServer) review(t *testing.T, reportID string, decision models.ReportStatus, notes string) *http.Response {
	t.Helper()
	return ts.do(t, jsonRequest(t, http.MethodPost, "/api/admin/reports/"+reportID+"/review", ReviewRequest{
		Decision: string(decision),
		Notes:    notes,
	}), reviewer)
}

func multipartUpload(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}
