package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/config"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/repository"
	"github.com/Grundrak/shortlink-analytics-dashboard/pkg/utils"

	"gorm.io/gorm"
)

type ShortenDTO struct {
	UserID      uint
	OriginalURL string
	CustomAlias string
	ExpiresAt   *time.Time
	IPAddress   string // For Audit Log
}

type ShortenerService struct {
	db            *gorm.DB
	auditService  *AuditService
	logger        *slog.Logger
	codeGenerator func(int) (string, error)
	codeLength    int
	maxAttempts   int
	enforceState  bool
	now           func() time.Time
}

func NewShortenerService(db *gorm.DB, auditService *AuditService, cfg config.Config, logger *slog.Logger) *ShortenerService {
	return &ShortenerService{
		db:            db,
		auditService:  auditService,
		logger:        logger,
		codeGenerator: utils.GenerateShortCode,
		codeLength:    cfg.ShortCodeLength,
		maxAttempts:   cfg.ShortCodeMaxAttempts,
		enforceState:  cfg.EnforceLinkState,
		now:           time.Now,
	}
}

func (s *ShortenerService) CreateShortURL(ctx context.Context, dto ShortenDTO) (*models.URL, error) {
	originalURL := strings.TrimSpace(dto.OriginalURL)
	if err := utils.ValidateOriginalURL(originalURL); err != nil {
		return nil, NewValidationError(validationMessage(err), err)
	}

	link := models.URL{
		UserID:      dto.UserID,
		OriginalURL: originalURL,
		IsActive:    true,
		CreatedAt:   s.now().UTC(),
	}

	if dto.CustomAlias != "" {
		alias := utils.NormalizeAlias(dto.CustomAlias)
		if err := utils.ValidateAlias(alias); err != nil {
			return nil, NewValidationError(validationMessage(err), err)
		}
		link.CustomAlias = &alias
	}

	if dto.ExpiresAt != nil {
		if !dto.ExpiresAt.After(s.now()) {
			return nil, NewValidationError("Expiry date must be in the future", nil)
		}
		expiresAt := dto.ExpiresAt.UTC()
		link.ExpiresAt = &expiresAt
	}

	if err := s.allocate(ctx, &link); err != nil {
		return nil, err
	}

	s.logger.Info("Short URL created", "short_code", link.ShortCode, "user_id", link.UserID)
	if s.auditService != nil {
		userID := dto.UserID
		s.auditService.LogAction(&userID, ActionCreateLink, link.ShortCode, map[string]any{
			"original_url": link.OriginalURL,
		}, dto.IPAddress)
	}

	return &link, nil
}

// Resolve looks the code up by exact match on either the short code or the
// custom alias. Every call reads the store.
func (s *ShortenerService) Resolve(ctx context.Context, code string) (*models.URL, error) {
	link, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if s.enforceState && (!link.IsActive || link.IsExpired(s.now())) {
		return nil, &Error{Kind: KindGone, Msg: "URL is no longer available"}
	}
	return link, nil
}

func (s *ShortenerService) findByCode(ctx context.Context, code string) (*models.URL, error) {
	if code == "" {
		return nil, NewNotFoundError("URL not found")
	}

	var link models.URL
	err := s.db.WithContext(ctx).
		Where("short_code = ? OR custom_alias = ?", code, code).
		First(&link).Error
	if repository.IsNotFound(err) {
		return nil, NewNotFoundError("URL not found")
	}
	if err != nil {
		return nil, NewStoreError("look up short code", err)
	}
	return &link, nil
}

// GetForPrincipal returns the link if the principal owns it or is an admin.
func (s *ShortenerService) GetForPrincipal(ctx context.Context, principal Principal, code string) (*models.URL, error) {
	link, err := s.findByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !principal.CanAccess(link.UserID) {
		return nil, NewForbiddenError("Forbidden: Access denied")
	}
	return link, nil
}

// ListLinks returns the caller's links, newest first. Admins see every link.
func (s *ShortenerService) ListLinks(ctx context.Context, principal Principal) ([]models.URL, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if !principal.IsAdmin() {
		query = query.Where("user_id = ?", principal.UserID)
	}

	links := []models.URL{}
	if err := query.Find(&links).Error; err != nil {
		return nil, NewStoreError("list links", err)
	}
	return links, nil
}

// DeleteLink removes the link and its click history.
func (s *ShortenerService) DeleteLink(ctx context.Context, principal Principal, code, ip string) error {
	link, err := s.GetForPrincipal(ctx, principal, code)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("url_id = ?", link.ID).Delete(&models.Click{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.URL{}, link.ID).Error
	})
	if err != nil {
		return NewStoreError("delete link", err)
	}

	s.logger.Info("Short URL deleted", "short_code", link.ShortCode, "by", principal.UserID)
	if s.auditService != nil {
		actor := principal.UserID
		s.auditService.LogAction(&actor, ActionDeleteLink, link.ShortCode, map[string]any{
			"owner_id": link.UserID,
		}, ip)
	}
	return nil
}

func validationMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return "Invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
