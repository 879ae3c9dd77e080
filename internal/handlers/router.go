package handlers

import (
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/services"
	"github.com/Grundrak/shortlink-analytics-dashboard/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registerValidators sync.Once

func (h *Handler) SetupRouter(rateLimiter *services.IPRateLimiter) *gin.Engine {
	registerValidators.Do(setupValidator)

	r := gin.New()
	r.Use(h.RequestLogger(), gin.Recovery(), h.MetricsMiddleware(), h.ErrorHandler())
	if rateLimiter != nil {
		r.Use(h.RateLimitMiddleware(rateLimiter))
	}

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/api-key", h.AuthRequired(), h.RegenerateAPIKey)

		urls := api.Group("/urls", h.AuthRequired())
		urls.POST("", h.CreateURL)
		urls.GET("", h.ListURLs)
		urls.DELETE("/:shortCode", h.DeleteURL)
		urls.GET("/:shortCode/qr", h.URLQRCode)

		analytics := api.Group("/analytics", h.AuthRequired())
		analytics.GET("/url/:urlId", h.URLAnalytics)
		analytics.GET("/url/:urlId/timerange", h.URLAnalyticsByTimeRange)
		analytics.GET("/url/:urlId/realtime", h.URLRealtimeAnalytics)
		analytics.GET("/url/:urlId/export", h.ExportURLAnalytics)
		analytics.GET("/summary", h.AnalyticsSummary)
		analytics.GET("/top-urls", h.TopURLs)

		admin := api.Group("/admin", h.AuthRequired(), h.RequireRole(models.RoleAdmin))
		admin.GET("/users", h.ListUsers)
		admin.PUT("/users/:userId/role", h.UpdateUserRole)
	}

	// Catch-all Redirect
	r.GET("/:short_code", h.RedirectToURL)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})

	return r
}

func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// setupValidator reports binding errors by JSON field name and adds the
// shortalias rule.
func setupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("shortalias", func(fl validator.FieldLevel) bool {
		return utils.ValidateAlias(utils.NormalizeAlias(fl.Field().String())) == nil
	})
}
