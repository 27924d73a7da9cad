package database

import "context"

type Stats struct {
	Users       int64
	Groups      int64
	Files       int64
	ActiveLinks int64
	TotalSize   int64
	TotalClicks int64
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	db := r.db.WithContext(ctx)
	if err := db.Model(&AuthorizedUser{}).Count(&s.Users).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Group{}).Count(&s.Groups).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&File{}).Count(&s.Files).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Link{}).Where("active = ?", true).Count(&s.ActiveLinks).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&File{}).Select("COALESCE(SUM(size), 0)").Scan(&s.TotalSize).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&Link{}).Select("COALESCE(SUM(clicks), 0)").Scan(&s.TotalClicks).Error; err != nil {
		return nil, err
	}
	return s, nil
}
