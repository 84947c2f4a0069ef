package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdesk/internal/config"
)

func newFilter(t *testing.T) *Filter {
	t.Helper()
	f, err := New(config.IndexingConfig{
		Folders: []config.Folder{
			{Path: "/home/u", Recursive: true},
			{Path: "/home/u/private", Recursive: true, Exclude: true},
			{Path: "/home/u/private/shared", Recursive: true},
			{Path: "/srv/flat", Recursive: false},
		},
		ExcludeFilters: []string{"*~", "*.o", "node_modules", "**/build/**"},
	})
	require.NoError(t, err)
	return f
}

func TestShouldIndexFolder(t *testing.T) {
	f := newFilter(t)

	tests := []struct {
		dir  string
		want bool
	}{
		{"/home/u", true},
		{"/home/u/docs", true},
		{"/home/u/private", false},
		{"/home/u/private/secret", false},
		{"/home/u/private/shared", true},
		{"/home/u/private/shared/deep", true},
		{"/home/u/.cache", false},
		{"/home/u/code/node_modules", false},
		{"/home/u/code/node_modules/pkg", false},
		{"/home/u/code/build/out", false},
		{"/srv/flat", true},
		{"/srv/flat/sub", false},
		{"/home/user2", false},
		{"/etc", false},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			assert.Equal(t, tt.want, f.ShouldIndexFolder(tt.dir))
		})
	}
}

func TestShouldIndexFile(t *testing.T) {
	f := newFilter(t)

	assert.True(t, f.ShouldIndexFile("/home/u/notes.txt"))
	assert.False(t, f.ShouldIndexFile("/home/u/notes.txt~"))
	assert.False(t, f.ShouldIndexFile("/home/u/main.o"))
	assert.False(t, f.ShouldIndexFile("/home/u/.bashrc"))
	assert.False(t, f.ShouldIndexFile("/home/u/private/diary.txt"))
	assert.True(t, f.ShouldIndexFile("/srv/flat/readme"))
}

func TestIndexHidden(t *testing.T) {
	f, err := New(config.IndexingConfig{
		Folders:     []config.Folder{{Path: "/data", Recursive: true}},
		IndexHidden: true,
	})
	require.NoError(t, err)

	assert.True(t, f.ShouldIndexFile("/data/.hidden/file"))
}

func TestAccepts_IgnoresFolderList(t *testing.T) {
	f := newFilter(t)

	// Outside every configured folder but clean name
	assert.True(t, f.Accepts("/mnt/usb/photos"))
	// Excluded name still rejected
	assert.False(t, f.Accepts("/mnt/usb/node_modules"))
	assert.False(t, f.Accepts("/mnt/usb/build/x"))
}

func TestIncludedFolders(t *testing.T) {
	f := newFilter(t)

	var paths []string
	for _, folder := range f.IncludedFolders() {
		paths = append(paths, folder.Path)
	}

	assert.ElementsMatch(t, []string{"/home/u", "/home/u/private/shared", "/srv/flat"}, paths)
}

func TestNew_RejectsBadPattern(t *testing.T) {
	_, err := New(config.IndexingConfig{ExcludeFilters: []string{"[unclosed"}})
	assert.Error(t, err)
}
