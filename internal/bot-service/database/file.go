package database

import "time"

type File struct {
	ID           uint64 `gorm:"primaryKey"`
	GroupID      uint64 `gorm:"not null;index:,unique,composite:group_serial"`
	Group        *Group `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	SerialNumber int64  `gorm:"not null;index:,unique,composite:group_serial"`
	UniqueID     string `gorm:"not null;uniqueIndex;size:16"`
	Name         string
	Kind         string `gorm:"not null;size:16"`
	Size         int64  `gorm:"not null;default:0"`
	// ExternalHandle is the transport's reference to the object content.
	ExternalHandle string `gorm:"not null"`
	UploaderID     int64  `gorm:"not null;index"`
	UploaderName   string
	UploadedAt     time.Time `gorm:"autoCreateTime"`
	// DeliveryRef points to the archived copy, zero until relayed.
	DeliveryRef int64
}
