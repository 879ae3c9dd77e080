package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/config"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedirectToURL(t *testing.T) {
	env := setupTestEnv(t)
	token, _ := env.userToken(t, "owner@example.com", models.RoleUser)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/urls", map[string]string{"originalUrl": "https://example.com/landing", "customAlias": "landing"}, token).Code)
	link := env.link(t, "landing")

	t.Run("Unknown code", func(t *testing.T) {
		var before int64
		env.db.Model(&models.Click{}).Count(&before)

		w := env.do(http.MethodGet, "/doesnotexist123", nil, "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"message":"URL not found"}`, w.Body.String())

		var after int64
		env.db.Model(&models.Click{}).Count(&after)
		assert.Equal(t, before, after)
	})

	t.Run("Each redirect adds exactly one click", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			w := env.do(http.MethodGet, "/landing", nil, "")
			require.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, "https://example.com/landing", w.Header().Get("Location"))

			assert.Equal(t, int64(i), env.clickRows(t, link.ID))
			assert.Equal(t, int64(i), env.link(t, "landing").Clicks)
		}
	})

	t.Run("Visitor metadata is stored", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/landing", nil)
		req.RemoteAddr = "127.0.0.1:5555"
		req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		require.Equal(t, http.StatusFound, w.Code)

		var click models.Click
		require.NoError(t, env.db.Where("url_id = ?", link.ID).Order("id DESC").First(&click).Error)
		assert.Equal(t, "Local Development", click.IPAddress)
		assert.Equal(t, "Local Development", click.Location)
		assert.Equal(t, "mobile", click.Device)
		assert.Equal(t, "direct", click.Referrer)
		assert.NotEmpty(t, click.EventID)
	})
}

func TestRedirectToURL_LinkState(t *testing.T) {
	expire := func(env *testEnv, code string) {
		past := time.Now().Add(-time.Hour)
		env.db.Model(&models.URL{}).Where("short_code = ?", code).Update("expires_at", past)
	}

	t.Run("Not enforced by default", func(t *testing.T) {
		env := setupTestEnv(t)
		token, _ := env.userToken(t, "owner@example.com", models.RoleUser)
		require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/urls", map[string]string{"originalUrl": "https://example.com", "customAlias": "old"}, token).Code)
		expire(env, "old")

		assert.Equal(t, http.StatusFound, env.do(http.MethodGet, "/old", nil, "").Code)
	})

	t.Run("Enforced", func(t *testing.T) {
		env := setupTestEnv(t, func(c *config.Config) { c.EnforceLinkState = true })
		token, _ := env.userToken(t, "owner@example.com", models.RoleUser)
		require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/urls", map[string]string{"originalUrl": "https://example.com", "customAlias": "old"}, token).Code)
		expire(env, "old")

		w := env.do(http.MethodGet, "/old", nil, "")
		assert.Equal(t, http.StatusGone, w.Code)
		assert.Zero(t, env.clickRows(t, env.link(t, "old").ID))
	})
}

func TestRedirectToURL_AsyncMode(t *testing.T) {
	env := setupTestEnv(t, func(c *config.Config) { c.ClickRecordMode = config.RecordModeAsync })
	token, _ := env.userToken(t, "owner@example.com", models.RoleUser)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/urls", map[string]string{"originalUrl": "https://example.com", "customAlias": "async"}, token).Code)
	link := env.link(t, "async")

	// The redirect does not wait for the worker
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusFound, env.do(http.MethodGet, "/async", nil, "").Code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		env.recorder.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return env.link(t, "async").Clicks == 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(3), env.clickRows(t, link.ID))

	cancel()
	<-done
}

func TestRedirectToURL_SyncStoreFailure(t *testing.T) {
	env := setupTestEnv(t)
	token, _ := env.userToken(t, "owner@example.com", models.RoleUser)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/urls", map[string]string{"originalUrl": "https://example.com", "customAlias": "broken"}, token).Code)
	require.NoError(t, env.db.Migrator().DropTable(&models.Click{}))

	w := env.do(http.MethodGet, "/broken", nil, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, w.Body.String())
	assert.Zero(t, env.link(t, "broken").Clicks)
}
