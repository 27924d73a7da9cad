package database

import (
	"fmt"
	"time"
)

type LinkKind string

const (
	LinkKindFile  LinkKind = "file"
	LinkKindGroup LinkKind = "group"
)

type Link struct {
	ID      uint64   `gorm:"primaryKey"`
	Code    string   `gorm:"not null;uniqueIndex;size:16"`
	Kind    LinkKind `gorm:"not null;size:8;check:chk_links_kind,kind IN ('file','group')"`
	FileID  *uint64  `gorm:"index"`
	File    *File    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	GroupID *uint64  `gorm:"index;check:chk_links_target,(kind = 'file' AND file_id IS NOT NULL AND group_id IS NULL) OR (kind = 'group' AND group_id IS NOT NULL AND file_id IS NULL)"`
	Group   *Group   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	OwnerID int64    `gorm:"not null;index"`

	CreatedAt time.Time
	Clicks    int64 `gorm:"not null;default:0"`
	Active    bool  `gorm:"not null"`
	// ActiveKey is unique among active links and NULL once revoked, so at most
	// one active link exists per owner and target.
	ActiveKey *string `gorm:"uniqueIndex;size:64"`
}

// TargetID returns whichever of FileID/GroupID matches the kind.
func (l *Link) TargetID() uint64 {
	switch {
	case l.Kind == LinkKindFile && l.FileID != nil:
		return *l.FileID
	case l.Kind == LinkKindGroup && l.GroupID != nil:
		return *l.GroupID
	}
	return 0
}

func ActiveKey(ownerID int64, kind LinkKind, targetID uint64) string {
	return fmt.Sprintf("%s:%d:%d", kind, targetID, ownerID)
}
