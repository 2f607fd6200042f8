package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/layerfs/layer"
)

func TestOpenWritePreadClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	l := New("local")
	rc := layer.NewRequestContext()

	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	n, err := l.Pwrite(rc, fd, []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = l.Pread(rc, fd, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	st, err := l.Fstat(rc, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Size)

	require.NoError(t, l.Close(rc, fd))
}

func TestFtruncateAndLstat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	l := New("local")
	rc := layer.NewRequestContext()

	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = l.Pwrite(rc, fd, []byte("0123456789"), 0)
	require.NoError(t, err)
	require.NoError(t, l.Ftruncate(rc, fd, 4))
	require.NoError(t, l.Close(rc, fd))

	st, err := l.Lstat(rc, path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Size)
}

func TestUnlinkRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	l := New("local")
	rc := layer.NewRequestContext()

	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	require.NoError(t, l.Close(rc, fd))
	require.NoError(t, l.Unlink(rc, path))

	_, err = l.Lstat(rc, path)
	assert.Error(t, err)
}

func TestCloseUnknownFDFails(t *testing.T) {
	l := New("local")
	rc := layer.NewRequestContext()
	err := l.Close(rc, layer.FD(999))
	assert.Error(t, err)
}

func TestDestroyClosesOutstandingFDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	l := New("local")
	rc := layer.NewRequestContext()
	_, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	assert.NoError(t, l.Destroy())
}
