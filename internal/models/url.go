package models

import (
	"time"
)

// URL is a short link. CustomAlias, when set, is also stored as ShortCode so
// both live in one unique namespace.
type URL struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"userId"`
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ShortCode   string     `gorm:"uniqueIndex;not null;size:30" json:"shortCode"`
	CustomAlias *string    `gorm:"uniqueIndex;size:30" json:"customAlias,omitempty"`
	OriginalURL string     `gorm:"not null;type:text" json:"originalUrl"`
	Clicks      int64      `gorm:"not null;default:0" json:"clicks"`
	IsActive    bool       `gorm:"not null;default:true" json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`

	ClickEvents []Click `gorm:"foreignKey:URLID;constraint:OnDelete:CASCADE" json:"-"`
}

func (URL) TableName() string {
	return "urls"
}

func (u URL) IsExpired(now time.Time) bool {
	return u.ExpiresAt != nil && now.After(*u.ExpiresAt)
}
