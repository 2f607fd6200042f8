package demux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclone/layerfs/layer"
	"github.com/rclone/layerfs/local"
)

func TestDefaultEnforcesDownstreamZero(t *testing.T) {
	downstreams := []layer.Layer{local.New("a"), local.New("b")}
	l, err := New("demux", downstreams, Options{})
	require.NoError(t, err)
	assert.True(t, l.opts[0].enforced)
	assert.False(t, l.opts[1].enforced)
}

func TestValidationRejectsConflictingFlags(t *testing.T) {
	downstreams := []layer.Layer{local.New("a"), local.New("b")}
	_, err := New("demux", downstreams, Options{EnforcedLayers: "a", PassthroughReads: "a"})
	assert.Error(t, err)
}

func TestValidationRejectsAllPassthroughRead(t *testing.T) {
	downstreams := []layer.Layer{local.New("a"), local.New("b")}
	_, err := New("demux", downstreams, Options{PassthroughReads: "a,b"})
	assert.Error(t, err)
}

func TestOpenWriteReadAcrossBothDownstreams(t *testing.T) {
	// Since local layers write wherever the absolute path points, use the
	// same path for both so writes on both downstreams are observable.
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	downstreams := []layer.Layer{local.New("a"), local.New("b")}
	l, err := New("demux", downstreams, Options{})
	require.NoError(t, err)
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

	require.NoError(t, l.Close(rc, fd))
}

func TestNonEnforcedFailureDoesNotFailCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	downstreams := []layer.Layer{local.New("a"), local.New("b")}
	l, err := New("demux", downstreams, Options{EnforcedLayers: "a"})
	require.NoError(t, err)
	rc := layer.NewRequestContext()

	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	// Close downstream b's fd directly behind demux's back so its next
	// operation fails; since b is not enforced, the call must still
	// succeed overall.
	downFDs, ok := l.downstreamFDs(fd)
	require.True(t, ok)
	require.NoError(t, downstreams[1].Close(rc, downFDs[1]))

	n, err := l.Pwrite(rc, fd, []byte("hi"), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	status := l.Status()
	require.Len(t, status, 2)
	assert.Error(t, status[1].LastErr)

	require.NoError(t, l.Close(rc, fd))
}

func TestEnforcedFailureFailsCall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")

	downstreams := []layer.Layer{local.New("a"), local.New("b")}
	l, err := New("demux", downstreams, Options{EnforcedLayers: "a,b"})
	require.NoError(t, err)
	rc := layer.NewRequestContext()

	fd, err := l.Open(rc, path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)

	downFDs, ok := l.downstreamFDs(fd)
	require.True(t, ok)
	require.NoError(t, downstreams[1].Close(rc, downFDs[1]))

	_, err = l.Pwrite(rc, fd, []byte("hi"), 0)
	assert.Error(t, err)

	_ = l.Close(rc, fd)
}
