package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUploadFormIsSpooled(t *testing.T) {
	ctx := context.Background()
	uploadDir := t.TempDir()
	form := newUploadForm(uploadDir)
	defer form.RemoveAll(ctx)

	file := form.spool(ctx, strings.NewReader("firmware"), "fw.bin", 1024)
	require.Equal(t, UploadOK, file.ErrorCode)
	require.Equal(t, int64(len("firmware")), file.Size)
	require.True(t, form.IsSpooled(file.Path))

	t.Run("foreign_file", func(t *testing.T) {
		path := filepath.Join(uploadDir, "foreign")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
		require.False(t, form.IsSpooled(path))
	})

	t.Run("local_path", func(t *testing.T) {
		require.False(t, form.IsSpooled("/etc/passwd"))
		require.False(t, form.IsSpooled(""))
	})

	t.Run("replaced_by_symlink", func(t *testing.T) {
		file := form.spool(ctx, strings.NewReader("firmware"), "fw.bin", 1024)
		require.NoError(t, os.Remove(file.Path))
		require.NoError(t, os.Symlink("/etc/passwd", file.Path))
		require.False(t, form.IsSpooled(file.Path))
	})

	t.Run("removed", func(t *testing.T) {
		file := form.spool(ctx, strings.NewReader("firmware"), "fw.bin", 1024)
		require.NoError(t, os.Remove(file.Path))
		require.False(t, form.IsSpooled(file.Path))
	})
}

func TestUploadFormRemoveAll(t *testing.T) {
	ctx := context.Background()
	uploadDir := t.TempDir()
	form := newUploadForm(uploadDir)

	for i := 0; i < 3; i++ {
		file := form.spool(ctx, strings.NewReader("firmware"), "fw.bin", 1024)
		require.FileExists(t, file.Path)
	}
	form.RemoveAll(ctx)

	entries, err := os.ReadDir(uploadDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestUploadFormValue(t *testing.T) {
	form := newUploadForm(t.TempDir())
	form.Values.Add("firmware_version", "1")
	form.Values.Add("firmware_version", "2")

	value, ok := form.Value("firmware_version")
	require.True(t, ok)
	require.Equal(t, "2", value)

	_, ok = form.Value("token")
	require.False(t, ok)
}
