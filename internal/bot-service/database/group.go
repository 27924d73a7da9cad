package database

import "time"

// Group is an append-only, owner-scoped collection of files.
// TotalFiles and TotalSize always equal the aggregates over the live files;
// LastSerial is the high-water mark of serial numbers ever handed out.
type Group struct {
	ID         uint64    `gorm:"primaryKey"`
	Name       string    `gorm:"not null;index:,unique,composite:owner_name"`
	OwnerID    int64     `gorm:"not null;index:,unique,composite:owner_name"`
	CreatedAt  time.Time `gorm:"index"`
	TotalFiles int64     `gorm:"not null;default:0"`
	TotalSize  int64     `gorm:"not null;default:0"`
	LastSerial int64     `gorm:"not null;default:0"`
}

func (Group) TableName() string {
	return "file_groups"
}
