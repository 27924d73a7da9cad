// Package directory answers who may use the bot. Admins come from
// configuration; everybody else is an authorized user stored in the database.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/database"
)

var (
	ErrAdminImmutable = errors.New("admins are managed by configuration")
	ErrUserExists     = errors.New("user is already authorized")
	ErrUserNotFound   = errors.New("user is not authorized")
	ErrStore          = errors.New("user storage failure")
)

type UserStore interface {
	AddUser(ctx context.Context, u *database.AuthorizedUser) error
	GetUser(ctx context.Context, userID int64) (*database.AuthorizedUser, error)
	RemoveUser(ctx context.Context, userID int64) error
	ListUsers(ctx context.Context, exclude []int64) ([]*database.AuthorizedUser, error)
	SetCaptionDisabled(ctx context.Context, userID int64, disabled bool) error
}

type Directory struct {
	admins map[int64]struct{}
	store  UserStore
	l      *log.Entry
}

func New(adminIDs []int64, store UserStore, l *log.Entry) *Directory {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &Directory{admins: admins, store: store, l: l}
}

func (d *Directory) IsAdmin(id int64) bool {
	_, ok := d.admins[id]
	return ok
}

// Admins returns the configured admin IDs in ascending order.
func (d *Directory) Admins() []int64 {
	res := make([]int64, 0, len(d.admins))
	for id := range d.admins {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

func (d *Directory) IsAuthorized(ctx context.Context, id int64) (bool, error) {
	if d.IsAdmin(id) {
		return true, nil
	}
	u, err := d.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return false, nil
		}
		d.l.WithField("user_id", id).WithError(err).Error("can't check authorization")
		return false, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return u.Active, nil
}

func (d *Directory) AddUser(ctx context.Context, id int64, username string, addedBy int64) (*database.AuthorizedUser, error) {
	l := d.l.WithFields(log.Fields{"user_id": id, "added_by": addedBy})
	if d.IsAdmin(id) {
		return nil, ErrUserExists
	}
	u := &database.AuthorizedUser{UserID: id, Username: username, AddedBy: addedBy}
	if err := d.store.AddUser(ctx, u); err != nil {
		if errors.Is(err, database.ErrDuplicatedKey) {
			return nil, ErrUserExists
		}
		l.WithError(err).Error("can't add user")
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	l.Info("user authorized")
	return u, nil
}

func (d *Directory) RemoveUser(ctx context.Context, id int64) error {
	if d.IsAdmin(id) {
		return ErrAdminImmutable
	}
	if err := d.store.RemoveUser(ctx, id); err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		d.l.WithField("user_id", id).WithError(err).Error("can't remove user")
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	d.l.WithField("user_id", id).Info("user removed")
	return nil
}

// ListUsers returns the stored, non-admin users newest first.
func (d *Directory) ListUsers(ctx context.Context) ([]*database.AuthorizedUser, error) {
	users, err := d.store.ListUsers(ctx, d.Admins())
	if err != nil {
		d.l.WithError(err).Error("can't list users")
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	return users, nil
}

// ToggleCaption flips the user's caption preference and returns whether
// captions are now disabled for them.
func (d *Directory) ToggleCaption(ctx context.Context, id int64) (bool, error) {
	if d.IsAdmin(id) {
		return false, ErrAdminImmutable
	}
	u, err := d.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrRecordNotFound) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("%w: %w", ErrStore, err)
	}
	disabled := !u.CaptionDisabled
	if err := d.store.SetCaptionDisabled(ctx, id, disabled); err != nil {
		d.l.WithField("user_id", id).WithError(err).Error("can't toggle user caption")
		return false, fmt.Errorf("%w: %w", ErrStore, err)
	}
	d.l.WithFields(log.Fields{"user_id": id, "caption_disabled": disabled}).Info("user caption toggled")
	return disabled, nil
}
