package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthEndpoints(t *testing.T) {
	env := setupTestEnv(t)

	register := map[string]string{"email": "jane@example.com", "name": "Jane", "password": "password123"}

	t.Run("Register", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/register", register, "")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.NotContains(t, w.Body.String(), "password")

		var data struct {
			User   models.User `json:"user"`
			APIKey string      `json:"apiKey"`
		}
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
		assert.Equal(t, "jane@example.com", data.User.Email)
		assert.Equal(t, models.RoleUser, data.User.Role)
		assert.NotEmpty(t, data.APIKey)
	})

	t.Run("Register Duplicate", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/register", register, "")
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Register Validation", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/register", map[string]string{"email": "bad", "name": "X", "password": "password123"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "email must be a valid email address", decode(t, w).Message)

		w = env.do(http.MethodPost, "/api/auth/register", map[string]string{"email": "x@example.com", "name": "X", "password": "short"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "password must be at least 8 characters", decode(t, w).Message)
	})

	var token string
	t.Run("Login", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "jane@example.com", "password": "password123"}, "")
		require.Equal(t, http.StatusOK, w.Code)

		var data struct {
			Token string      `json:"token"`
			User  models.User `json:"user"`
		}
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))
		assert.NotEmpty(t, data.Token)
		token = data.Token

		created := env.do(http.MethodPost, "/api/urls", map[string]string{"originalUrl": "https://example.com"}, token)
		assert.Equal(t, http.StatusCreated, created.Code)
	})

	t.Run("Login Bad Credentials", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/login", map[string]string{"email": "jane@example.com", "password": "wrong-password"}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid credentials", decode(t, w).Message)
	})

	t.Run("Malformed Authorization Header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/urls", nil)
		req.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/urls", nil, "not-a-jwt").Code)
	})

	t.Run("Regenerate API Key", func(t *testing.T) {
		w := env.do(http.MethodPost, "/api/auth/api-key", nil, token)
		require.Equal(t, http.StatusOK, w.Code)

		var data struct {
			APIKey string `json:"apiKey"`
		}
		require.NoError(t, json.Unmarshal(decode(t, w).Data, &data))

		req := httptest.NewRequest(http.MethodGet, "/api/urls", strings.NewReader(""))
		req.Header.Set("X-API-Key", data.APIKey)
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
