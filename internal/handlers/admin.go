package handlers

import (
	"net/http"
	"strconv"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/services"

	"github.com/gin-gonic/gin"
)

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=USER ADMIN"`
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": users})
}

func (h *Handler) UpdateUserRole(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil || userID == 0 {
		c.Error(services.NewValidationError("Invalid user id", err))
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(bindError(err))
		return
	}

	actor, _ := principalFrom(c)
	user, err := h.userService.UpdateRole(c.Request.Context(), actor, uint(userID), req.Role, c.ClientIP())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}
