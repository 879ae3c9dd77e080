package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/repository"
	"github.com/Grundrak/shortlink-analytics-dashboard/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// Principal is the authenticated caller attached to a request.
type Principal struct {
	UserID uint
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// CanAccess reports whether the principal may act on a resource owned by ownerID.
func (p Principal) CanAccess(ownerID uint) bool {
	return p.IsAdmin() || p.UserID == ownerID
}

type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type RegisterDTO struct {
	Email     string
	Name      string
	Password  string
	IPAddress string
}

type AuthService struct {
	db           *gorm.DB
	auditService *AuditService
	logger       *slog.Logger
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewAuthService(db *gorm.DB, auditService *AuditService, secret string, ttl time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		db:           db,
		auditService: auditService,
		logger:       logger,
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, dto RegisterDTO) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(dto.Email))

	hashedPassword, err := utils.HashPassword(dto.Password)
	if err != nil {
		return nil, NewValidationError("Password cannot be used", err)
	}

	user := models.User{
		Email:        email,
		Name:         strings.TrimSpace(dto.Name),
		PasswordHash: hashedPassword,
		Role:         models.RoleUser,
		Subscription: models.PlanFree,
		APIKey:       utils.GenerateAPIKey(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return gorm.ErrDuplicatedKey
		}
		return tx.Create(&user).Error
	})
	if repository.IsUniqueViolation(err) {
		return nil, NewConflictError("User with this email already exists")
	}
	if err != nil {
		return nil, NewStoreError("create user", err)
	}

	if s.auditService != nil {
		s.auditService.LogAction(&user.ID, ActionRegister, user.Email, nil, dto.IPAddress)
	}
	return &user, nil
}

// Login returns a signed token for valid credentials. Unknown emails and
// wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if repository.IsNotFound(err) {
		return "", nil, NewUnauthorizedError("Invalid credentials")
	}
	if err != nil {
		return "", nil, NewStoreError("look up user", err)
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, NewUnauthorizedError("Invalid credentials")
	}

	token, err := s.GenerateToken(&user)
	if err != nil {
		return "", nil, &Error{Kind: KindStore, Msg: "failed to issue token", Err: err}
	}
	return token, &user, nil
}

func (s *AuthService) GenerateToken(user *models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses a bearer token. The role is re-read from the store so
// role changes apply to tokens already issued.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return Principal{}, &Error{Kind: KindUnauthorized, Msg: "Invalid or expired token", Err: err}
	}

	return s.principalFor(ctx, "id = ?", claims.UserID)
}

func (s *AuthService) AuthenticateAPIKey(ctx context.Context, apiKey string) (Principal, error) {
	if apiKey == "" {
		return Principal{}, NewUnauthorizedError("Invalid API key")
	}
	principal, err := s.principalFor(ctx, "api_key = ?", apiKey)
	if IsKind(err, KindUnauthorized) {
		return Principal{}, NewUnauthorizedError("Invalid API key")
	}
	return principal, err
}

func (s *AuthService) principalFor(ctx context.Context, query string, arg any) (Principal, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "role").Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Principal{}, NewUnauthorizedError("User no longer exists")
	}
	if err != nil {
		return Principal{}, NewStoreError("look up user", err)
	}
	return Principal{UserID: user.ID, Role: user.Role}, nil
}

func (s *AuthService) RegenerateAPIKey(ctx context.Context, userID uint) (string, error) {
	newKey := utils.GenerateAPIKey()
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("api_key", newKey)
	if result.Error != nil {
		return "", NewStoreError("update API key", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", NewNotFoundError("User not found")
	}
	return newKey, nil
}
