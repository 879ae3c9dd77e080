package services

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbCounter atomic.Int64

// setupTestDB returns an isolated in-memory database per call.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc%d?mode=memory&cache=shared", dbCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.URL{}, &models.Click{}, &models.AuditLog{}))
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTestUser(t *testing.T, db *gorm.DB, email, role string) models.User {
	t.Helper()
	user := models.User{
		Email:        email,
		Name:         "Test User",
		PasswordHash: "hash",
		Role:         role,
		APIKey:       "key-" + email,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createTestURL(t *testing.T, db *gorm.DB, userID uint, code string) models.URL {
	t.Helper()
	link := models.URL{
		UserID:      userID,
		ShortCode:   code,
		OriginalURL: "https://example.com/" + code,
		IsActive:    true,
	}
	require.NoError(t, db.Create(&link).Error)
	return link
}
