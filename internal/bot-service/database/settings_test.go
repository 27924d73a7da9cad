package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Settings(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	require.NoError(t, repo.SeedSettings(ctx, map[string]string{
		SettingCaptionEnabled: "1",
		SettingCustomCaption:  "t.me/default",
	}))
	require.NoError(t, repo.SetSetting(ctx, SettingCustomCaption, "t.me/changed"))
	// seeding again must not overwrite
	require.NoError(t, repo.SeedSettings(ctx, map[string]string{SettingCustomCaption: "t.me/default"}))

	tests := []struct {
		key     string
		want    string
		wantErr error
	}{
		{key: SettingCaptionEnabled, want: "1"},
		{key: SettingCustomCaption, want: "t.me/changed"},
		{key: "missing", wantErr: ErrRecordNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := repo.GetSetting(ctx, tt.key)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepository_Users(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	require.NoError(t, repo.AddUser(ctx, &AuthorizedUser{UserID: 10, Username: "ten", AddedBy: 1}))
	require.NoError(t, repo.AddUser(ctx, &AuthorizedUser{UserID: 1, Username: "admin", AddedBy: 1}))
	assert.ErrorIs(t, repo.AddUser(ctx, &AuthorizedUser{UserID: 10, AddedBy: 1}), ErrDuplicatedKey)

	u, err := repo.GetUser(ctx, 10)
	require.NoError(t, err)
	assert.True(t, u.Active)
	assert.False(t, u.CaptionDisabled)

	require.NoError(t, repo.SetCaptionDisabled(ctx, 10, true))
	u, err = repo.GetUser(ctx, 10)
	require.NoError(t, err)
	assert.True(t, u.CaptionDisabled)

	users, err := repo.ListUsers(ctx, []int64{1})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(10), users[0].UserID)

	require.NoError(t, repo.RemoveUser(ctx, 10))
	assert.ErrorIs(t, repo.RemoveUser(ctx, 10), ErrRecordNotFound)
	assert.ErrorIs(t, repo.SetCaptionDisabled(ctx, 10, false), ErrRecordNotFound)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Users)
}
