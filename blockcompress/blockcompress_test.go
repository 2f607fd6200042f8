package blockcompress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/layerfs/codec"
	"github.com/rclone/layerfs/layer"
	"github.com/rclone/layerfs/local"
)

func newTestLayer(t *testing.T) (*Layer, string) {
	t.Helper()
	dir := t.TempDir()
	c, err := codec.Find("zstd")
	require.NoError(t, err)
	l := New("compression", local.New("local"), c, Options{BlockSize: 16})
	return l, filepath.Join(dir, "f")
}

func TestRandomAccessWriteReadRoundTrip(t *testing.T) {
	l, path := newTestLayer(t)
	rc := layer.NewRequestContext()

	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to fill several blocks")
	n, err := l.Pwrite(rc, fd, payload, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	out := make([]byte, len(payload))
	n, err = l.Pread(rc, fd, out, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, out)

	// Overwrite a region spanning a block boundary and confirm the
	// untouched surrounding bytes survive the merge.
	patch := []byte("XYZ")
	_, err = l.Pwrite(rc, fd, patch, 14)
	require.NoError(t, err)
	out = make([]byte, len(payload))
	_, err = l.Pread(rc, fd, out, 0)
	require.NoError(t, err)
	assert.Equal(t, "XYZ", string(out[14:17]))
	assert.Equal(t, payload[:14], out[:14])

	require.NoError(t, l.Close(rc, fd))
}

func TestReadPastEOFIsClamped(t *testing.T) {
	l, path := newTestLayer(t)
	rc := layer.NewRequestContext()
	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = l.Pwrite(rc, fd, []byte("hello"), 0)
	require.NoError(t, err)

	buf := make([]byte, 100)
	n, err := l.Pread(rc, fd, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = l.Pread(rc, fd, buf, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, l.Close(rc, fd))
}

func TestSparseGapReadsAsZero(t *testing.T) {
	l, path := newTestLayer(t)
	rc := layer.NewRequestContext()
	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	// Write at block 2 only (block size 16), leaving blocks 0 and 1 sparse.
	_, err = l.Pwrite(rc, fd, []byte("block-two-data"), 32)
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, err := l.Pread(rc, fd, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}

	require.NoError(t, l.Close(rc, fd))
}

func TestFtruncateShrinkAcrossBlockBoundary(t *testing.T) {
	l, path := newTestLayer(t)
	rc := layer.NewRequestContext()
	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}
	_, err = l.Pwrite(rc, fd, payload, 0)
	require.NoError(t, err)

	require.NoError(t, l.Ftruncate(rc, fd, 20))

	st, err := l.Fstat(rc, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(20), st.Size)

	out := make([]byte, 20)
	n, err := l.Pread(rc, fd, out, 0)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, payload[:20], out)

	require.NoError(t, l.Close(rc, fd))
}

func TestFtruncateToZero(t *testing.T) {
	l, path := newTestLayer(t)
	rc := layer.NewRequestContext()
	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	_, err = l.Pwrite(rc, fd, []byte("some data here"), 0)
	require.NoError(t, err)
	require.NoError(t, l.Ftruncate(rc, fd, 0))

	st, err := l.Fstat(rc, fd)
	require.NoError(t, err)
	assert.Equal(t, int64(0), st.Size)

	require.NoError(t, l.Close(rc, fd))
}

func TestCrashRebuildFromStorage(t *testing.T) {
	l, path := newTestLayer(t)
	rc := layer.NewRequestContext()

	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	payload := []byte("a payload long enough to span a couple of blocks of data")
	_, err = l.Pwrite(rc, fd, payload, 0)
	require.NoError(t, err)
	require.NoError(t, l.Close(rc, fd))

	// Simulate process restart: fresh layer, no in-memory inode mapping.
	l2 := New("compression", local.New("local"), l.codec, Options{BlockSize: 16})
	fd2, err := l2.Open(rc, path, os.O_RDWR, 0o644)
	require.NoError(t, err)

	out := make([]byte, len(payload))
	n, err := l2.Pread(rc, fd2, out, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, out)

	st, err := l2.Fstat(rc, fd2)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), st.Size)

	require.NoError(t, l2.Close(rc, fd2))
}

func TestUnlinkDeferredUntilLastClose(t *testing.T) {
	l, path := newTestLayer(t)
	rc := layer.NewRequestContext()

	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = l.Pwrite(rc, fd, []byte("data"), 0)
	require.NoError(t, err)

	require.NoError(t, l.Unlink(rc, path))

	// The open fd must still be usable after unlink.
	out := make([]byte, 4)
	n, err := l.Pread(rc, fd, out, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, l.Close(rc, fd))
}

func TestCompressionFallsBackToRawWhenLarger(t *testing.T) {
	l, path := newTestLayer(t)
	rc := layer.NewRequestContext()
	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	// Random-looking short payload: zstd framing overhead likely exceeds
	// the raw length, exercising the is_uncompressed fallback path.
	payload := []byte{0x01, 0x9f, 0x3c, 0x00, 0xff}
	_, err = l.Pwrite(rc, fd, payload, 0)
	require.NoError(t, err)

	out := make([]byte, len(payload))
	n, err := l.Pread(rc, fd, out, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, out)

	require.NoError(t, l.Close(rc, fd))
}
