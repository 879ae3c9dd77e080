package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/metrics"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	principalKey    = "principal"
	requestIDHeader = "X-Request-ID"
)

// AuthRequired accepts a bearer token or an X-API-Key header and stores the
// resulting principal on the context.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var (
			principal services.Principal
			err       error
		)
		if header := c.GetHeader("Authorization"); header != "" {
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				err = services.NewUnauthorizedError("Authorization header must be in format: Bearer {token}")
			} else {
				principal, err = h.authService.ValidateToken(ctx, strings.TrimSpace(token))
			}
		} else if apiKey := c.GetHeader("X-API-Key"); apiKey != "" {
			principal, err = h.authService.AuthenticateAPIKey(ctx, apiKey)
		} else {
			err = services.NewUnauthorizedError("Unauthorized")
		}

		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func (h *Handler) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := principalFrom(c)
		if !ok || principal.Role != role {
			c.Error(services.NewForbiddenError("Forbidden: insufficient role"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func principalFrom(c *gin.Context) (services.Principal, bool) {
	val, exists := c.Get(principalKey)
	if !exists {
		return services.Principal{}, false
	}
	principal, ok := val.(services.Principal)
	return principal, ok
}

func (h *Handler) RateLimitMiddleware(limiter *services.IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "Rate limit exceeded. Please try again later.",
			})
			return
		}
		c.Next()
	}
}

// RequestLogger writes one line per request and propagates X-Request-ID.
func (h *Handler) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			h.logger.Error("HTTP request", attrs...)
		case status >= http.StatusBadRequest:
			h.logger.Warn("HTTP request", attrs...)
		default:
			h.logger.Info("HTTP request", attrs...)
		}
	}
}

func (h *Handler) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
