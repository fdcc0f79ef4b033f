package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"casedesk/internal/config"
	"casedesk/internal/middleware"
	"casedesk/internal/models"
	"casedesk/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_AuthRequired(t *testing.T) {
	s := &Server{config: &config.Config{JWTSecret: testSecret}}
	app := fiber.New()
	app.Get("/protected", s.AuthRequired(), func(c *fiber.Ctx) error {
		actor, _ := middleware.ActorFrom(c)
		return c.JSON(fiber.Map{"userID": c.Locals("userID"), "role": actor.Role})
	})

	signed := func(claims jwt.MapClaims) string {
		str, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return str
	}
	claimsFor := func(sub, iss, aud string, exp time.Duration) jwt.MapClaims {
		return jwt.MapClaims{
			"sub":  sub,
			"role": "Supervisor",
			"iss":  iss,
			"aud":  aud,
			"exp":  time.Now().Add(exp).Unix(),
			"jti":  "test-jti",
		}
	}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{
			name:           "Valid Token",
			authHeader:     bearer(t, reviewer),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + signed(claimsFor("u1", middleware.TokenIssuer, middleware.TokenAudience, -time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Issuer",
			authHeader:     "Bearer " + signed(claimsFor("u1", "wrong-issuer", middleware.TokenAudience, time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Audience",
			authHeader:     "Bearer " + signed(claimsFor("u1", middleware.TokenIssuer, "wrong-audience", time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Blank Subject",
			authHeader:     "Bearer " + signed(claimsFor(" ", middleware.TokenIssuer, middleware.TokenAudience, time.Hour)),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Header",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Bearer Format",
			authHeader:     "BearerTokenOnly",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedStatus == http.StatusOK {
				body := decode[map[string]string](t, resp)
				assert.Equal(t, reviewer.ID, body["userID"])
				assert.Equal(t, string(models.RoleSupervisor), body["role"])
			} else {
				assert.Equal(t, models.CodeUnauthorized, errorCode(t, resp))
			}
		})
	}
}

func TestServer_AuthRequired_RevokedToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := &Server{config: &config.Config{JWTSecret: testSecret}, redis: rdb}
	app := fiber.New()
	app.Get("/protected", s.AuthRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	token, err := middleware.IssueToken(testSecret, alice, time.Hour)
	require.NoError(t, err)
	_, jti, err := middleware.ParseToken(testSecret, token)
	require.NoError(t, err)

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, send())
	require.NoError(t, mr.Set("blacklist:"+jti, "1"))
	assert.Equal(t, http.StatusUnauthorized, send())
}

func TestServer_ReviewerRequired(t *testing.T) {
	s := &Server{config: &config.Config{JWTSecret: testSecret}}
	app := fiber.New()
	app.Get("/admin", s.AuthRequired(), s.ReviewerRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/no-auth", s.ReviewerRequired(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	tests := []struct {
		name           string
		actor          models.Actor
		expectedStatus int
	}{
		{"user", alice, http.StatusForbidden},
		{"supervisor", reviewer, http.StatusOK},
		{"administrator", admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", bearer(t, tt.actor))
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
		})
	}

	t.Run("without actor", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/no-auth", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestServer_SetupMiddleware(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	srv, err := NewServerWithDeps(newTestConfig(), db, nil, testutil.NewMemoryFileStore())
	require.NoError(t, err)

	app := NewApp("casedesk-test", 1<<20)
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)

	t.Run("request id and security headers", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
		assert.Equal(t, "nosniff", resp.Header.Get(fiber.HeaderXContentTypeOptions))
	})

	t.Run("cors preflight allows If-Match", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/reports", nil)
		req.Header.Set(fiber.HeaderOrigin, "http://localhost:5173")
		req.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPut)
		req.Header.Set(fiber.HeaderAccessControlRequestHeaders, "If-Match")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "http://localhost:5173", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
		assert.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowHeaders), "If-Match")
	})

	t.Run("cors rejects unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
		req.Header.Set(fiber.HeaderOrigin, "https://evil.example")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	})
}

func TestNewServerWithDeps_RequiresDependencies(t *testing.T) {
	db := testutil.NewSQLiteDB(t)

	_, err := NewServerWithDeps(newTestConfig(), nil, nil, testutil.NewMemoryFileStore())
	assert.EqualError(t, err, "database is required")

	_, err = NewServerWithDeps(newTestConfig(), db, nil, nil)
	assert.EqualError(t, err, "file store is required")
}

func TestNewFileStore(t *testing.T) {
	cfg := newTestConfig()
	cfg.StorageDir = t.TempDir()
	store, err := NewFileStore(t.Context(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, store)

	cfg.StorageBackend = "ftp"
	store, err = NewFileStore(t.Context(), cfg)
	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestNewApp_ErrorHandler(t *testing.T) {
	app := NewApp("casedesk-test", 1<<20)
	app.Get("/teapot", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("database exploded")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/teapot", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "short and stout", decode[models.ErrorResponse](t, resp).Error)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, models.CodeInternal, body.Code)
	assert.NotContains(t, body.Error, "exploded")
	assert.Empty(t, body.Details)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	small := NewApp("casedesk-test", 16)
	small.Post("/echo", func(c *fiber.Ctx) error { return c.Send(c.Body()) })
	resp, err = small.Test(httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("x", 64))))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, decode[models.ErrorResponse](t, resp).Code)
}

// --- health ---

func TestHealthChecks(t *testing.T) {
	t.Run("liveness", func(t *testing.T) {
		ts := newTestServer(t)
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/health/live", nil), models.Actor{})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "up", decode[map[string]any](t, resp)["status"])
	})

	t.Run("ready without redis", func(t *testing.T) {
		ts := newTestServer(t)
		resp := ts.do(t, httptest.NewRequest(http.MethodGet, "/health/ready", nil), models.Actor{})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[map[string]any](t, resp)
		assert.Equal(t, "healthy", body["status"])
		checks := body["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "disabled", checks["redis"])
	})

	t.Run("ready with redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		s := &Server{config: newTestConfig(), db: testutil.NewSQLiteDB(t), redis: rdb}

		app := fiber.New()
		app.Get("/health", s.ReadinessCheck)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		checks := decode[map[string]any](t, resp)["checks"].(map[string]any)
		assert.Equal(t, "healthy", checks["redis"])

		mr.Close()
		resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("database down", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		s := &Server{config: newTestConfig(), db: db}

		app := fiber.New()
		app.Get("/health", s.ReadinessCheck)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		checks := decode[map[string]any](t, resp)["checks"].(map[string]any)
		assert.Equal(t, "unhealthy", checks["database"])
	})
}
