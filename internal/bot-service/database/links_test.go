package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_CreateLinkOneActivePerTarget(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	f := newFile("OneActive", 1)
	_, _, err := repo.SaveFile(ctx, 1, "OneActive", f)
	require.NoError(t, err)
	fileID := f.ID

	first := &Link{Code: "first", Kind: LinkKindFile, FileID: &fileID, OwnerID: 1}
	require.NoError(t, repo.CreateLink(ctx, first))

	second := &Link{Code: "second", Kind: LinkKindFile, FileID: &fileID, OwnerID: 1}
	assert.ErrorIs(t, repo.CreateLink(ctx, second), ErrDuplicatedKey)

	otherOwner := &Link{Code: "other", Kind: LinkKindFile, FileID: &fileID, OwnerID: 2}
	assert.NoError(t, repo.CreateLink(ctx, otherOwner))

	active, err := repo.ActiveLink(ctx, 1, LinkKindFile, fileID)
	require.NoError(t, err)
	assert.Equal(t, "first", active.Code)

	require.NoError(t, repo.DeactivateLink(ctx, first.ID))
	assert.ErrorIs(t, repo.DeactivateLink(ctx, first.ID), ErrRecordNotFound, "revocation is terminal")

	_, err = repo.ActiveLink(ctx, 1, LinkKindFile, fileID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	revoked, err := repo.GetLinkByCode(ctx, "first")
	require.NoError(t, err)
	assert.False(t, revoked.Active)
	assert.Nil(t, revoked.ActiveKey)

	assert.NoError(t, repo.CreateLink(ctx, second), "a fresh code can be minted after revocation")
}

func TestRepository_IncrementClicks(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	f := newFile("Clicks", 1)
	g, _, err := repo.SaveFile(ctx, 1, "Clicks", f)
	require.NoError(t, err)
	groupID := g.ID
	l := &Link{Code: "clicks", Kind: LinkKindGroup, GroupID: &groupID, OwnerID: 1}
	require.NoError(t, repo.CreateLink(ctx, l))

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementClicks(ctx, l.ID))
	}
	got, err := repo.GetLinkByCode(ctx, "clicks")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Clicks)
	assert.Equal(t, groupID, got.TargetID())
}

func TestRepository_ListActiveLinks(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	f := newFile("ListLinks", 1)
	g, _, err := repo.SaveFile(ctx, 1, "ListLinks", f)
	require.NoError(t, err)
	fileID, groupID := f.ID, g.ID

	require.NoError(t, repo.CreateLink(ctx, &Link{Code: "l-file", Kind: LinkKindFile, FileID: &fileID, OwnerID: 1}))
	grp := &Link{Code: "l-group", Kind: LinkKindGroup, GroupID: &groupID, OwnerID: 1}
	require.NoError(t, repo.CreateLink(ctx, grp))
	require.NoError(t, repo.CreateLink(ctx, &Link{Code: "l-other", Kind: LinkKindGroup, GroupID: &groupID, OwnerID: 2}))
	require.NoError(t, repo.DeactivateLink(ctx, grp.ID))

	links, err := repo.ListActiveLinks(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "l-file", links[0].Code)
	require.NotNil(t, links[0].File)
	assert.Equal(t, "ListLinks", links[0].File.Name)
}

func TestRepository_CreateLinkTargetMatchesKind(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	f := newFile("TargetKind", 1)
	g, _, err := repo.SaveFile(ctx, 1, "TargetKind", f)
	require.NoError(t, err)
	fileID, groupID := f.ID, g.ID

	tests := []struct {
		name    string
		link    *Link
		wantErr bool
	}{
		{name: "file", link: &Link{Code: "k1", Kind: LinkKindFile, FileID: &fileID}},
		{name: "group", link: &Link{Code: "k2", Kind: LinkKindGroup, GroupID: &groupID}},
		{name: "no target", link: &Link{Code: "k3", Kind: LinkKindFile}, wantErr: true},
		{name: "both targets", link: &Link{Code: "k4", Kind: LinkKindGroup, FileID: &fileID, GroupID: &groupID}, wantErr: true},
		{name: "file kind with group", link: &Link{Code: "k5", Kind: LinkKindFile, GroupID: &groupID}, wantErr: true},
		{name: "group kind with file", link: &Link{Code: "k6", Kind: LinkKindGroup, FileID: &fileID}, wantErr: true},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.link.OwnerID = int64(100 + i)
			err := repo.CreateLink(ctx, tt.link)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
