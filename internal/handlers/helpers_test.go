package handlers

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/config"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/repository"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

type testEnv struct {
	cfg      config.Config
	db       *gorm.DB
	router   *gin.Engine
	auth     *services.AuthService
	recorder *services.ClickRecorder
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() config.Config {
	return config.Config{
		AppEnv:               "test",
		BaseURL:              "https://sho.rt",
		DatabaseURL:          fmt.Sprintf("sqlite://file:handlers%d?mode=memory&cache=shared", dbCounter.Add(1)),
		JWTSecret:            "test-secret",
		JWTTTL:               time.Hour,
		ShortCodeLength:      8,
		ShortCodeMaxAttempts: 5,
		ClickRecordMode:      config.RecordModeSync,
		ClickBufferSize:      100,
	}
}

func setupTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	db, err := repository.InitDB(cfg)
	require.NoError(t, err)
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() { repository.CloseDB(db) })
	require.NoError(t, repository.AutoMigrate(db))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := services.NewAuditService(db, log)
	auth := services.NewAuthService(db, audit, cfg.JWTSecret, cfg.JWTTTL, log)
	recorder := services.NewClickRecorder(db, log, services.NewVisitorResolver(nil, cfg.MaskClickIPs), nil, cfg.ClickBufferSize)

	h := NewHandler(
		cfg,
		log,
		db,
		services.NewShortenerService(db, audit, cfg, log),
		recorder,
		services.NewAnalyticsService(db, log),
		auth,
		services.NewUserService(db, audit, log),
		services.NewQRService(),
	)

	return &testEnv{
		cfg:      cfg,
		db:       db,
		router:   h.SetupRouter(nil),
		auth:     auth,
		recorder: recorder,
	}
}

// userToken creates a user with the given role and returns a bearer token for it.
func (e *testEnv) userToken(t *testing.T, email, role string) (string, models.User) {
	t.Helper()
	user := models.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: "unused",
		Role:         role,
		APIKey:       "key-" + email,
	}
	require.NoError(t, e.db.Create(&user).Error)

	token, err := e.auth.GenerateToken(&user)
	require.NoError(t, err)
	return token, user
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) clickRows(t *testing.T, urlID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Click{}).Where("url_id = ?", urlID).Count(&n).Error)
	return n
}

func (e *testEnv) link(t *testing.T, code string) models.URL {
	t.Helper()
	var link models.URL
	require.NoError(t, e.db.Where("short_code = ?", code).First(&link).Error)
	return link
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}
