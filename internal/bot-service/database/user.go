package database

import "time"

type AuthorizedUser struct {
	ID              uint64 `gorm:"primaryKey"`
	UserID          int64  `gorm:"not null;uniqueIndex"`
	Username        string
	FirstName       string
	AddedBy         int64     `gorm:"not null"`
	AddedAt         time.Time `gorm:"autoCreateTime"`
	Active          bool      `gorm:"not null"`
	CaptionDisabled bool      `gorm:"not null"`
}
