package services

import (
	"context"
	"log/slog"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/repository"

	"gorm.io/gorm"
)

type UserService struct {
	db           *gorm.DB
	auditService *AuditService
	logger       *slog.Logger
}

func NewUserService(db *gorm.DB, auditService *AuditService, logger *slog.Logger) *UserService {
	return &UserService{db: db, auditService: auditService, logger: logger}
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users := []models.User{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, NewStoreError("list users", err)
	}
	return users, nil
}

func (s *UserService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if repository.IsNotFound(err) {
		return nil, NewNotFoundError("User not found")
	}
	if err != nil {
		return nil, NewStoreError("look up user", err)
	}
	return &user, nil
}

func (s *UserService) UpdateRole(ctx context.Context, actor Principal, userID uint, role, ip string) (*models.User, error) {
	if !models.IsValidRole(role) {
		return nil, NewValidationError("Invalid role", nil)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, NewStoreError("update role", err)
	}
	user.Role = role

	s.logger.Info("User role updated", "user_id", user.ID, "role", role, "by", actor.UserID)
	if s.auditService != nil {
		actorID := actor.UserID
		s.auditService.LogAction(&actorID, ActionUpdateRole, user.Email, map[string]string{"role": role}, ip)
	}
	return user, nil
}
