package models

import (
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"

	PlanFree    = "FREE"
	PlanPremium = "PREMIUM"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null;size:120" json:"email"`
	Name         string    `gorm:"not null;size:120" json:"name"`
	PasswordHash string    `gorm:"not null;size:255" json:"-"`
	Role         string    `gorm:"not null;size:10;default:USER" json:"role"`
	Subscription string    `gorm:"not null;size:20;default:FREE" json:"subscription"`
	APIKey       string    `gorm:"uniqueIndex;size:36" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	URLs         []URL     `gorm:"foreignKey:UserID" json:"urls,omitempty"`
}

func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
