package database

import (
	"context"

	"gorm.io/gorm/clause"
)

func (r *Repository) AddUser(ctx context.Context, u *AuthorizedUser) error {
	u.Active = true
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repository) GetUser(ctx context.Context, userID int64) (*AuthorizedUser, error) {
	u := &AuthorizedUser{}
	return u, r.db.WithContext(ctx).First(u, "user_id = ?", userID).Error
}

func (r *Repository) RemoveUser(ctx context.Context, userID int64) error {
	res := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&AuthorizedUser{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListUsers returns users newest first, leaving out the given IDs.
func (r *Repository) ListUsers(ctx context.Context, exclude []int64) ([]*AuthorizedUser, error) {
	var res []*AuthorizedUser
	q := r.db.WithContext(ctx)
	if len(exclude) > 0 {
		q = q.Where("user_id NOT IN ?", exclude)
	}
	return res, q.
		Order(clause.OrderByColumn{Column: clause.Column{Name: "added_at"}, Desc: true}).
		Order("id desc").
		Find(&res).Error
}

func (r *Repository) SetCaptionDisabled(ctx context.Context, userID int64, disabled bool) error {
	res := r.db.WithContext(ctx).Model(&AuthorizedUser{}).
		Where("user_id = ?", userID).
		Update("caption_disabled", disabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
