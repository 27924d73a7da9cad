package database

import (
	"context"

	"gorm.io/gorm/clause"
)

// SeedSettings inserts the defaults that are not stored yet.
func (r *Repository) SeedSettings(ctx context.Context, defaults map[string]string) error {
	if len(defaults) == 0 {
		return nil
	}
	rows := make([]*Setting, 0, len(defaults))
	for k, v := range defaults {
		rows = append(rows, &Setting{Key: k, Value: v})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rows).Error
}

func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	s := &Setting{}
	if err := r.db.WithContext(ctx).First(s, "key = ?", key).Error; err != nil {
		return "", err
	}
	return s.Value, nil
}

func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Key: key, Value: value}).Error
}
