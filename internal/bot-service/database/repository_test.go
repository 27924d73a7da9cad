package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDb(DriverSqlite, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to connect database: %s", err)
	}
	return NewRepository(db)
}

func newFile(name string, size int64) *File {
	return &File{
		UniqueID:       "uid-" + name,
		Name:           name,
		Kind:           "document",
		Size:           size,
		ExternalHandle: "handle-" + name,
		UploaderID:     1,
		UploaderName:   "owner",
	}
}

func checkAggregates(t *testing.T, repo *Repository, groupID uint64) {
	t.Helper()
	g, err := repo.GetGroup(context.Background(), groupID)
	require.NoError(t, err)
	files, err := repo.ListFiles(context.Background(), groupID)
	require.NoError(t, err)
	var size int64
	for _, f := range files {
		size += f.Size
	}
	assert.Equal(t, int64(len(files)), g.TotalFiles, "total files")
	assert.Equal(t, size, g.TotalSize, "total size")
}

func TestRepository_SaveFile(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		owner       int64
		group       string
		size        int64
		wantSerial  int64
		wantCreated bool
	}{
		{name: "a", owner: 1, group: "Docs", size: 10, wantSerial: 1, wantCreated: true},
		{name: "b", owner: 1, group: "Docs", size: 20, wantSerial: 2},
		{name: "c", owner: 1, group: "Docs", size: 30, wantSerial: 3},
		{name: "other owner same name", owner: 2, group: "Docs", size: 5, wantSerial: 1, wantCreated: true},
		{name: "other group", owner: 1, group: "Pics", size: 7, wantSerial: 1, wantCreated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFile(tt.name+fmt.Sprint(tt.owner)+tt.group, tt.size)
			g, created, err := repo.SaveFile(ctx, tt.owner, tt.group, f)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCreated, created)
			assert.Equal(t, tt.wantSerial, f.SerialNumber)
			assert.Equal(t, g.ID, f.GroupID)
			assert.NotZero(t, f.ID)
			checkAggregates(t, repo, g.ID)
		})
	}

	g, err := repo.GetGroupByName(ctx, 1, "Docs")
	require.NoError(t, err)
	want := &Group{ID: g.ID, Name: "Docs", OwnerID: 1, TotalFiles: 3, TotalSize: 60, LastSerial: 3}
	if diff := cmp.Diff(want, g, cmpopts.IgnoreFields(Group{}, "CreatedAt")); diff != "" {
		t.Errorf("GetGroupByName()\n%s", diff)
	}
}

func TestRepository_SaveFileConcurrent(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	const n = 20
	wg := sync.WaitGroup{}
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			owner := int64(1)
			_, _, err := repo.SaveFile(ctx, owner, "Shared", newFile(fmt.Sprintf("concurrent_%d", i), 1))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	g, err := repo.GetGroupByName(ctx, 1, "Shared")
	require.NoError(t, err)
	files, err := repo.ListFiles(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, files, n)
	for i, f := range files {
		assert.Equal(t, int64(i+1), f.SerialNumber)
	}
	checkAggregates(t, repo, g.ID)
}

func TestRepository_RemoveFile(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	var ids []uint64
	var groupID uint64
	for i := 1; i <= 3; i++ {
		f := newFile(fmt.Sprintf("RemoveFile_%d", i), int64(i*10))
		g, _, err := repo.SaveFile(ctx, 1, "RemoveFile", f)
		require.NoError(t, err)
		ids = append(ids, f.ID)
		groupID = g.ID
	}

	removed, err := repo.RemoveFile(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed.SerialNumber)
	checkAggregates(t, repo, groupID)

	next := newFile("RemoveFile_4", 40)
	_, _, err = repo.SaveFile(ctx, 1, "RemoveFile", next)
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.SerialNumber, "serial numbers are never reused")

	files, err := repo.ListFiles(ctx, groupID)
	require.NoError(t, err)
	got := make([]int64, 0, len(files))
	for _, f := range files {
		got = append(got, f.SerialNumber)
	}
	if diff := cmp.Diff([]int64{1, 3, 4}, got); diff != "" {
		t.Errorf("ListFiles() serials\n%s", diff)
	}
	checkAggregates(t, repo, groupID)

	_, err = repo.RemoveFile(ctx, ids[1])
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepository_RollbackFile(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		rollback   int
		wantNext   int64
		wantSerial []int64
	}{
		{name: "latest file", rollback: 2, wantNext: 3, wantSerial: []int64{1, 2, 3}},
		{name: "older file", rollback: 0, wantNext: 4, wantSerial: []int64{2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group := "RollbackFile_" + tt.name
			var ids []uint64
			var groupID uint64
			for i := 1; i <= 3; i++ {
				f := newFile(fmt.Sprintf("%s_%d", group, i), int64(i*10))
				g, _, err := repo.SaveFile(ctx, 1, group, f)
				require.NoError(t, err)
				ids = append(ids, f.ID)
				groupID = g.ID
			}

			require.NoError(t, repo.RollbackFile(ctx, ids[tt.rollback]))
			checkAggregates(t, repo, groupID)

			next := newFile(group+"_next", 5)
			_, _, err := repo.SaveFile(ctx, 1, group, next)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, next.SerialNumber)

			files, err := repo.ListFiles(ctx, groupID)
			require.NoError(t, err)
			got := make([]int64, 0, len(files))
			for _, f := range files {
				got = append(got, f.SerialNumber)
			}
			if diff := cmp.Diff(tt.wantSerial, got); diff != "" {
				t.Errorf("ListFiles() serials\n%s", diff)
			}
			checkAggregates(t, repo, groupID)
		})
	}

	assert.ErrorIs(t, repo.RollbackFile(ctx, 9999), ErrRecordNotFound)
}

func TestRepository_GetFileBySerial(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _, err := repo.SaveFile(ctx, 1, "BySerial", newFile(fmt.Sprintf("BySerial_%d", i), 1))
		require.NoError(t, err)
	}

	tests := []struct {
		name    string
		owner   int64
		group   string
		serial  int64
		want    string
		wantErr error
	}{
		{name: "first", owner: 1, group: "BySerial", serial: 1, want: "BySerial_0"},
		{name: "second", owner: 1, group: "BySerial", serial: 2, want: "BySerial_1"},
		{name: "missing serial", owner: 1, group: "BySerial", serial: 3, wantErr: ErrRecordNotFound},
		{name: "not the owner", owner: 2, group: "BySerial", serial: 1, wantErr: ErrRecordNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := repo.GetFileBySerial(ctx, tt.owner, tt.group, tt.serial)
			if !assert.ErrorIs(t, err, tt.wantErr) || tt.wantErr != nil {
				return
			}
			assert.Equal(t, tt.want, f.Name)
		})
	}
}

func TestRepository_RemoveGroupCascades(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	f := newFile("Cascade_1", 1)
	g, _, err := repo.SaveFile(ctx, 1, "Cascade", f)
	require.NoError(t, err)
	_, _, err = repo.SaveFile(ctx, 1, "Cascade", newFile("Cascade_2", 1))
	require.NoError(t, err)

	fileID, groupID := f.ID, g.ID
	require.NoError(t, repo.CreateLink(ctx, &Link{Code: "file-link", Kind: LinkKindFile, FileID: &fileID, OwnerID: 1}))
	require.NoError(t, repo.CreateLink(ctx, &Link{Code: "group-link", Kind: LinkKindGroup, GroupID: &groupID, OwnerID: 1}))

	require.NoError(t, repo.RemoveGroup(ctx, g.ID))

	_, err = repo.GetGroup(ctx, g.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	_, err = repo.GetFile(ctx, f.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	for _, code := range []string{"file-link", "group-link"} {
		_, err = repo.GetLinkByCode(ctx, code)
		assert.ErrorIs(t, err, ErrRecordNotFound, code)
	}
	assert.ErrorIs(t, repo.RemoveGroup(ctx, g.ID), ErrRecordNotFound)
}

func TestRepository_RemoveFileCascadesLinks(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()

	f := newFile("LinkCascade", 1)
	_, _, err := repo.SaveFile(ctx, 1, "LinkCascade", f)
	require.NoError(t, err)
	fileID := f.ID
	require.NoError(t, repo.CreateLink(ctx, &Link{Code: "cascade-file", Kind: LinkKindFile, FileID: &fileID, OwnerID: 1}))

	_, err = repo.RemoveFile(ctx, f.ID)
	require.NoError(t, err)
	_, err = repo.GetLinkByCode(ctx, "cascade-file")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestRepository_SetDeliveryRef(t *testing.T) {
	repo := setup(t)
	ctx := context.Background()
	f := newFile("DeliveryRef", 1)
	_, _, err := repo.SaveFile(ctx, 1, "DeliveryRef", f)
	require.NoError(t, err)

	require.NoError(t, repo.SetDeliveryRef(ctx, f.ID, 42))
	got, err := repo.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.DeliveryRef)

	assert.ErrorIs(t, repo.SetDeliveryRef(ctx, f.ID+100, 1), ErrRecordNotFound)
}
