package layer

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLayer is a minimal Layer that records the last call made to it,
// used to assert Base forwards every operation unchanged.
type recordingLayer struct {
	lastOp string
}

func (r *recordingLayer) Name() string { return "recording" }
func (r *recordingLayer) Open(rc *RequestContext, path string, flags int, mode fs.FileMode) (FD, error) {
	r.lastOp = "open"
	return FD(7), nil
}
func (r *recordingLayer) Close(rc *RequestContext, fd FD) error { r.lastOp = "close"; return nil }
func (r *recordingLayer) Pread(rc *RequestContext, fd FD, buf []byte, off int64) (int, error) {
	r.lastOp = "pread"
	return len(buf), nil
}
func (r *recordingLayer) Pwrite(rc *RequestContext, fd FD, buf []byte, off int64) (int, error) {
	r.lastOp = "pwrite"
	return len(buf), nil
}
func (r *recordingLayer) Ftruncate(rc *RequestContext, fd FD, size int64) error {
	r.lastOp = "ftruncate"
	return nil
}
func (r *recordingLayer) Truncate(rc *RequestContext, path string, size int64) error {
	r.lastOp = "truncate"
	return nil
}
func (r *recordingLayer) Fstat(rc *RequestContext, fd FD) (Stat, error) {
	r.lastOp = "fstat"
	return Stat{Size: 42}, nil
}
func (r *recordingLayer) Lstat(rc *RequestContext, path string) (Stat, error) {
	r.lastOp = "lstat"
	return Stat{Size: 42}, nil
}
func (r *recordingLayer) Unlink(rc *RequestContext, path string) error {
	r.lastOp = "unlink"
	return nil
}
func (r *recordingLayer) Fsync(rc *RequestContext, fd FD, dataOnly bool) error {
	r.lastOp = "fsync"
	return nil
}
func (r *recordingLayer) Fallocate(rc *RequestContext, fd FD, mode FallocateMode, off, size int64) error {
	r.lastOp = "fallocate"
	return nil
}
func (r *recordingLayer) Readdir(rc *RequestContext, path string) ([]DirEntry, error) {
	r.lastOp = "readdir"
	return nil, nil
}
func (r *recordingLayer) Rename(rc *RequestContext, oldPath, newPath string) error {
	r.lastOp = "rename"
	return nil
}
func (r *recordingLayer) Chmod(rc *RequestContext, path string, mode fs.FileMode) error {
	r.lastOp = "chmod"
	return nil
}
func (r *recordingLayer) Downstream() []Layer { return nil }
func (r *recordingLayer) Destroy() error      { r.lastOp = "destroy"; return nil }

func TestBaseForwardsEveryOperation(t *testing.T) {
	rec := &recordingLayer{}
	b := NewBase(rec)

	rc := NewRequestContext()
	_, _ = b.Open(rc, "/a", 0, 0)
	assert.Equal(t, "open", rec.lastOp)

	_ = b.Close(rc, FD(1))
	assert.Equal(t, "close", rec.lastOp)

	_, _ = b.Pread(rc, FD(1), make([]byte, 4), 0)
	assert.Equal(t, "pread", rec.lastOp)

	_, _ = b.Pwrite(rc, FD(1), make([]byte, 4), 0)
	assert.Equal(t, "pwrite", rec.lastOp)

	_ = b.Ftruncate(rc, FD(1), 0)
	assert.Equal(t, "ftruncate", rec.lastOp)

	_ = b.Truncate(rc, "/a", 0)
	assert.Equal(t, "truncate", rec.lastOp)

	st, err := b.Fstat(rc, FD(1))
	assert.NoError(t, err)
	assert.Equal(t, int64(42), st.Size)
	assert.Equal(t, "fstat", rec.lastOp)

	_, _ = b.Lstat(rc, "/a")
	assert.Equal(t, "lstat", rec.lastOp)

	_ = b.Unlink(rc, "/a")
	assert.Equal(t, "unlink", rec.lastOp)

	_ = b.Fsync(rc, FD(1), false)
	assert.Equal(t, "fsync", rec.lastOp)

	_ = b.Fallocate(rc, FD(1), FallocateDefault, 0, 0)
	assert.Equal(t, "fallocate", rec.lastOp)

	_, _ = b.Readdir(rc, "/a")
	assert.Equal(t, "readdir", rec.lastOp)

	_ = b.Rename(rc, "/a", "/b")
	assert.Equal(t, "rename", rec.lastOp)

	_ = b.Chmod(rc, "/a", 0o644)
	assert.Equal(t, "chmod", rec.lastOp)

	_ = b.Destroy()
	assert.Equal(t, "destroy", rec.lastOp)
}

func TestBaseDownstreamNilWhenUnset(t *testing.T) {
	var b Base
	assert.Nil(t, b.Downstream())
}

func TestBaseDownstreamReturnsSingleElement(t *testing.T) {
	rec := &recordingLayer{}
	b := NewBase(rec)
	ds := b.Downstream()
	require.Len(t, ds, 1)
	assert.Same(t, rec, ds[0])
}

func TestNewRequestContextAssignsUniqueIDs(t *testing.T) {
	a := NewRequestContext()
	b := NewRequestContext()
	assert.NotEqual(t, a.RequestID, b.RequestID)
}

func TestErrorFormattingAndUnwrap(t *testing.T) {
	wrapped := ErrNotFound
	e := NewError("demux", "pread", KindDownstreamFailure, wrapped)
	assert.Contains(t, e.Error(), "demux")
	assert.Contains(t, e.Error(), "pread")
	assert.Contains(t, e.Error(), "downstream failure")
	assert.ErrorIs(t, e, ErrNotFound)
}

func TestErrorWithoutUnderlyingErr(t *testing.T) {
	e := &Error{Kind: KindInvalidArgument, Layer: "local", Op: "open"}
	assert.Equal(t, "local: open invalid argument", e.Error())
	assert.Nil(t, e.Unwrap())
}

func TestKindStringCoversKnownKinds(t *testing.T) {
	assert.Equal(t, "invalid argument", KindInvalidArgument.String())
	assert.Equal(t, "invalid configuration", KindConfigInvalid.String())
	assert.Equal(t, "unknown error", Kind(999).String())
}

func TestRegisterFindAndRegistered(t *testing.T) {
	name := "test-only-layer-kind"
	Register(&RegInfo{Name: name, Description: "for tests"})

	info, err := Find(name)
	require.NoError(t, err)
	assert.Equal(t, name, info.Name)

	assert.Contains(t, Registered(), name)
}

func TestFindUnknownLayerType(t *testing.T) {
	_, err := Find("no-such-layer-kind-registered")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	name := "test-duplicate-layer-kind"
	Register(&RegInfo{Name: name})
	assert.Panics(t, func() {
		Register(&RegInfo{Name: name})
	})
}

func TestFeaturesMaskClearsUnsupportedCapability(t *testing.T) {
	var f Features
	f.Fill(nil)
	downstream := &Features{CanFallocate: false, CanReaddir: true, CanRename: true, CanChmod: true, CanFsync: true}
	f.Mask(downstream)

	assert.False(t, f.CanFallocate)
	assert.True(t, f.CanReaddir)
}

func TestFeaturesMaskNilDownstreamIsNoop(t *testing.T) {
	var f Features
	f.Fill(nil)
	f.Mask(nil)
	assert.True(t, f.CanFallocate)
}

func TestFeaturesWrapsFs(t *testing.T) {
	rec := &recordingLayer{}
	b := NewBase(rec)
	var f Features
	f.WrapsFs(&b, rec)
	assert.Same(t, rec, f.Wrapped)
}
