package models

import (
	"time"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    *uint     `gorm:"index" json:"userId"`
	Action    string    `gorm:"size:50;not null" json:"action"` // e.g., "REGISTER", "CREATE_LINK", "DELETE_LINK"
	EntityID  string    `gorm:"size:50" json:"entityId"`        // short code or user id
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"size:45" json:"ipAddress"`
	Timestamp time.Time `json:"timestamp"`
}
