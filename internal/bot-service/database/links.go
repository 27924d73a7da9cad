package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActiveLink returns the owner's active link for a target.
func (r *Repository) ActiveLink(ctx context.Context, ownerID int64, kind LinkKind, targetID uint64) (*Link, error) {
	l := &Link{}
	return l, r.db.WithContext(ctx).
		Where("active_key = ?", ActiveKey(ownerID, kind, targetID)).
		First(l).Error
}

// CreateLink persists an active link. A concurrent insert for the same owner
// and target fails with ErrDuplicatedKey.
func (r *Repository) CreateLink(ctx context.Context, l *Link) error {
	key := ActiveKey(l.OwnerID, l.Kind, l.TargetID())
	l.Active = true
	l.ActiveKey = &key
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(l).Error
}

func (r *Repository) GetLinkByCode(ctx context.Context, code string) (*Link, error) {
	l := &Link{}
	return l, r.db.WithContext(ctx).First(l, &Link{Code: code}).Error
}

// DeactivateLink revokes the link. Revocation is terminal.
func (r *Repository) DeactivateLink(ctx context.Context, id uint64) error {
	res := r.db.WithContext(ctx).Model(&Link{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{"active": false, "active_key": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *Repository) IncrementClicks(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&Link{}).
		Where("id = ?", id).
		Update("clicks", gorm.Expr("clicks + ?", 1)).Error
}

func (r *Repository) ListActiveLinks(ctx context.Context, ownerID int64, limit int) ([]*Link, error) {
	var res []*Link
	return res, r.db.WithContext(ctx).
		Preload("File").
		Preload("Group").
		Where("owner_id = ? AND active = ?", ownerID, true).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Order("id desc").
		Limit(limit).
		Find(&res).Error
}
