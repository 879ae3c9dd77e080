package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Grundrak/shortlink-analytics-dashboard/internal/models"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

const (
	ActionRegister   = "REGISTER"
	ActionCreateLink = "CREATE_LINK"
	ActionDeleteLink = "DELETE_LINK"
	ActionUpdateRole = "UPDATE_ROLE"

	auditBufferSize = 100
)

type AuditService struct {
	db      *gorm.DB
	logger  *slog.Logger
	entries chan models.AuditLog
}

func NewAuditService(db *gorm.DB, logger *slog.Logger) *AuditService {
	return &AuditService{
		db:      db,
		logger:  logger,
		entries: make(chan models.AuditLog, auditBufferSize),
	}
}

// Start writes queued entries until ctx is cancelled, then flushes what is
// still buffered.
func (s *AuditService) Start(ctx context.Context) {
	s.logger.Info("Audit worker starting")
	for {
		select {
		case entry := <-s.entries:
			s.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.entries:
					s.write(entry)
				default:
					s.logger.Info("Audit worker stopping")
					return
				}
			}
		}
	}
}

func (s *AuditService) write(entry models.AuditLog) {
	if err := s.db.Create(&entry).Error; err != nil {
		s.logger.Error("Failed to write audit log", "action", entry.Action, "error", err)
	}
}

// LogAction never blocks the caller; entries are dropped when the buffer is full.
func (s *AuditService) LogAction(userID *uint, action, entityID string, details any, ip string) {
	var detailText string
	if details != nil {
		detailBytes, err := json.Marshal(details)
		if err != nil {
			s.logger.Warn("Failed to encode audit details", "action", action, "error", err)
		} else {
			detailText = string(detailBytes)
		}
	}

	entry := models.AuditLog{
		UserID:    userID,
		Action:    action,
		EntityID:  entityID,
		Details:   detailText,
		IPAddress: ip,
		Timestamp: time.Now().UTC(),
	}

	select {
	case s.entries <- entry:
	default:
		s.logger.Warn("Audit channel full, dropping log", "action", action)
	}
}
