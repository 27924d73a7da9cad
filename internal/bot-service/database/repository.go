package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveFile stores f under the owner's group called groupName, creating the
// group when it does not exist yet. The group lookup, the serial number
// assignment, the aggregate update and the file insert happen in one
// transaction. groupCreated reports whether this call created the group.
func (r *Repository) SaveFile(ctx context.Context, ownerID int64, groupName string, f *File) (g *Group, groupCreated bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&Group{Name: groupName, OwnerID: ownerID})
		if res.Error != nil {
			return res.Error
		}
		groupCreated = res.RowsAffected == 1

		g = &Group{}
		if err := tx.First(g, &Group{Name: groupName, OwnerID: ownerID}).Error; err != nil {
			return err
		}

		// the update takes the row lock, so concurrent writers to the same
		// group read back distinct serials
		if err := tx.Model(&Group{}).Where("id = ?", g.ID).Updates(map[string]any{
			"total_files": gorm.Expr("total_files + ?", 1),
			"total_size":  gorm.Expr("total_size + ?", f.Size),
			"last_serial": gorm.Expr("last_serial + ?", 1),
		}).Error; err != nil {
			return err
		}
		if err := tx.First(g, g.ID).Error; err != nil {
			return err
		}

		f.ID = 0
		f.GroupID = g.ID
		f.SerialNumber = g.LastSerial
		return tx.Omit(clause.Associations).Create(f).Error
	})
	if err != nil {
		return nil, false, err
	}
	return g, groupCreated, nil
}

func (r *Repository) SetDeliveryRef(ctx context.Context, fileID uint64, ref int64) error {
	res := r.db.WithContext(ctx).Model(&File{}).Where("id = ?", fileID).Update("delivery_ref", ref)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// RemoveFile deletes the file and takes it out of its group's aggregates.
// Links to the file go with it through the foreign key.
func (r *Repository) RemoveFile(ctx context.Context, fileID uint64) (*File, error) {
	f := &File{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(f, fileID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&File{}, f.ID).Error; err != nil {
			return err
		}
		return tx.Model(&Group{}).Where("id = ?", f.GroupID).Updates(map[string]any{
			"total_files": gorm.Expr("total_files - ?", 1),
			"total_size":  gorm.Expr("total_size - ?", f.Size),
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// RollbackFile undoes a SaveFile whose object never made it to the archive.
// Unlike RemoveFile it also hands the serial number back when it is still the
// group's latest one, so a failed upload leaves no gap.
func (r *Repository) RollbackFile(ctx context.Context, fileID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f := &File{}
		if err := tx.First(f, fileID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&File{}, f.ID).Error; err != nil {
			return err
		}
		return tx.Model(&Group{}).Where("id = ?", f.GroupID).Updates(map[string]any{
			"total_files": gorm.Expr("total_files - ?", 1),
			"total_size":  gorm.Expr("total_size - ?", f.Size),
			"last_serial": gorm.Expr("CASE WHEN last_serial = ? THEN last_serial - 1 ELSE last_serial END", f.SerialNumber),
		}).Error
	})
}

// RemoveGroup deletes the group; files and links cascade.
func (r *Repository) RemoveGroup(ctx context.Context, groupID uint64) error {
	res := r.db.WithContext(ctx).Delete(&Group{}, groupID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (r *Repository) GetGroup(ctx context.Context, id uint64) (*Group, error) {
	g := &Group{}
	return g, r.db.WithContext(ctx).First(g, id).Error
}

func (r *Repository) GetGroupByName(ctx context.Context, ownerID int64, name string) (*Group, error) {
	g := &Group{}
	return g, r.db.WithContext(ctx).First(g, &Group{Name: name, OwnerID: ownerID}).Error
}

func (r *Repository) ListGroups(ctx context.Context, ownerID int64) ([]*Group, error) {
	var res []*Group
	return res, r.db.WithContext(ctx).
		Where(&Group{OwnerID: ownerID}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Order("id desc").
		Find(&res).Error
}

func (r *Repository) GetFile(ctx context.Context, id uint64) (*File, error) {
	f := &File{}
	return f, r.db.WithContext(ctx).First(f, id).Error
}

// GetFileBySerial finds a file by its position in one of the owner's groups.
func (r *Repository) GetFileBySerial(ctx context.Context, ownerID int64, groupName string, serial int64) (*File, error) {
	f := &File{}
	return f, r.db.WithContext(ctx).
		Joins("JOIN file_groups ON file_groups.id = files.group_id").
		Where("file_groups.name = ? AND file_groups.owner_id = ?", groupName, ownerID).
		Where("files.serial_number = ?", serial).
		First(f).Error
}

// ListFiles returns the group's files in serial order.
func (r *Repository) ListFiles(ctx context.Context, groupID uint64) ([]*File, error) {
	var res []*File
	return res, r.db.WithContext(ctx).
		Where(&File{GroupID: groupID}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "serial_number"}}).
		Find(&res).Error
}
