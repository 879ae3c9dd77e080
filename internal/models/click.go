package models

import (
	"time"
)

// Click is one immutable redirect traversal. EventID is assigned when the
// click is accepted and makes repeated deliveries of the same event harmless.
type Click struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	EventID         string    `gorm:"uniqueIndex;not null;size:36" json:"eventId"`
	URLID           uint      `gorm:"not null;index" json:"urlId"`
	IPAddress       string    `gorm:"size:45" json:"ipAddress"`
	Device          string    `gorm:"size:50" json:"device"`
	Browser         string    `gorm:"size:100" json:"browser"`
	OperatingSystem string    `gorm:"size:100" json:"operatingSystem"`
	Referrer        string    `gorm:"type:text" json:"referrer"`
	Location        string    `gorm:"size:200" json:"location"`
	UserAgent       string    `gorm:"-" json:"-"`
	ClickedAt       time.Time `gorm:"not null;index" json:"clickedAt"`
}

func (Click) TableName() string {
	return "clicks"
}
