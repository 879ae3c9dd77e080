package handlers

import (
	"log/slog"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/config"
	"github.com/Grundrak/shortlink-analytics-dashboard/internal/services"

	"gorm.io/gorm"
)

type Handler struct {
	cfg              config.Config
	logger           *slog.Logger
	db               *gorm.DB
	shortenerService *services.ShortenerService
	clickRecorder    *services.ClickRecorder
	analyticsService *services.AnalyticsService
	authService      *services.AuthService
	userService      *services.UserService
	qrService        *services.QRService
}

func NewHandler(
	cfg config.Config,
	logger *slog.Logger,
	db *gorm.DB,
	shortenerService *services.ShortenerService,
	clickRecorder *services.ClickRecorder,
	analyticsService *services.AnalyticsService,
	authService *services.AuthService,
	userService *services.UserService,
	qrService *services.QRService,
) *Handler {
	return &Handler{
		cfg:              cfg,
		logger:           logger,
		db:               db,
		shortenerService: shortenerService,
		clickRecorder:    clickRecorder,
		analyticsService: analyticsService,
		authService:      authService,
		userService:      userService,
		qrService:        qrService,
	}
}
