package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindUnauthorized:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindGone:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler turns the last error attached with c.Error into a
// {"message": ...} response. Server errors are logged and answered with a
// generic message.
func (h *Handler) ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := http.StatusInternalServerError
		message := "Internal server error"

		var svcErr *services.Error
		if errors.As(err, &svcErr) {
			status = statusFor(svcErr.Kind)
			if status < http.StatusInternalServerError {
				message = svcErr.Msg
			}
		}

		if status >= http.StatusInternalServerError {
			h.logger.Error("Request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", status,
				"error", err,
			)
		}

		c.AbortWithStatusJSON(status, gin.H{"message": message})
	}
}

// bindError converts a request binding failure into a validation error with
// a readable message.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			return services.NewValidationError(field+" is required", err)
		case "shortalias":
			return services.NewValidationError(field+" must be 3-30 alphanumeric characters and not a reserved word", err)
		case "email":
			return services.NewValidationError(field+" must be a valid email address", err)
		case "min":
			return services.NewValidationError(field+" must be at least "+fe.Param()+" characters", err)
		case "oneof":
			return services.NewValidationError(field+" must be one of: "+fe.Param(), err)
		default:
			return services.NewValidationError(field+" is invalid", err)
		}
	}
	return services.NewValidationError("Invalid request body", err)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
