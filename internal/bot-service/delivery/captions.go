package delivery

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/filestore-bot/internal/bot-service/database"
)

const (
	captionOn  = "1"
	captionOff = "0"
)

type CaptionStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetUser(ctx context.Context, userID int64) (*database.AuthorizedUser, error)
}

type AdminChecker interface {
	IsAdmin(id int64) bool
}

// Captions renders the text attached to archived and delivered objects.
type Captions struct {
	store  CaptionStore
	admins AdminChecker
	l      *log.Entry
}

func NewCaptions(store CaptionStore, admins AdminChecker, l *log.Entry) *Captions {
	return &Captions{store: store, admins: admins, l: l}
}

// Defaults are the settings seeded on start.
func Defaults(customCaption string) map[string]string {
	return map[string]string{
		database.SettingCaptionEnabled: captionOn,
		database.SettingCustomCaption:  customCaption,
	}
}

// Caption falls back to the bare name whenever the branded caption is off
// or can't be worked out. A zero serial is left out.
func (c *Captions) Caption(ctx context.Context, uploaderID int64, name string, serial int64) string {
	l := c.l.WithFields(log.Fields{"uploader_id": uploaderID, "file_name": name})
	if !c.admins.IsAdmin(uploaderID) {
		u, err := c.store.GetUser(ctx, uploaderID)
		switch {
		case err == nil && u.CaptionDisabled:
			return name
		case err != nil && !errors.Is(err, database.ErrRecordNotFound):
			l.WithError(err).Warn("can't read uploader caption preference")
			return name
		}
	}

	enabled, text, err := c.Settings(ctx)
	if err != nil {
		l.WithError(err).Warn("can't read caption settings")
		return name
	}
	if !enabled {
		return name
	}
	if serial > 0 {
		return fmt.Sprintf("#%03d %s\n\n%s", serial, name, text)
	}
	return fmt.Sprintf("%s\n\n%s", name, text)
}

// Settings returns the global caption toggle and text.
func (c *Captions) Settings(ctx context.Context) (bool, string, error) {
	enabled, err := c.store.GetSetting(ctx, database.SettingCaptionEnabled)
	if err != nil && !errors.Is(err, database.ErrRecordNotFound) {
		return false, "", err
	}
	text, err := c.store.GetSetting(ctx, database.SettingCustomCaption)
	if err != nil && !errors.Is(err, database.ErrRecordNotFound) {
		return false, "", err
	}
	return enabled == captionOn, text, nil
}

// Toggle flips the global caption and returns the new state.
func (c *Captions) Toggle(ctx context.Context) (bool, error) {
	enabled, _, err := c.Settings(ctx)
	if err != nil {
		return false, err
	}
	value := captionOn
	if enabled {
		value = captionOff
	}
	if err := c.store.SetSetting(ctx, database.SettingCaptionEnabled, value); err != nil {
		return false, err
	}
	c.l.WithField("caption_enabled", !enabled).Info("caption toggled")
	return !enabled, nil
}

func (c *Captions) SetText(ctx context.Context, text string) error {
	if err := c.store.SetSetting(ctx, database.SettingCustomCaption, text); err != nil {
		return err
	}
	c.l.Info("caption text updated")
	return nil
}
