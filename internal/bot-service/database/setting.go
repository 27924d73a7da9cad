package database

import "time"

const (
	SettingCaptionEnabled = "caption_enabled"
	SettingCustomCaption  = "custom_caption"
)

type Setting struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}
