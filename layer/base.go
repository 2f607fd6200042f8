package layer

import "io/fs"

// Base gives a unary layer (one downstream) default passthrough behavior
// for every operation. Concrete layers embed Base and override only the
// operations whose semantics they transform; everything else forwards
// unchanged to the downstream, matching the "absent operations pass
// through" rule.
type Base struct {
	downstream Layer
}

// NewBase wires a Base to its single downstream.
func NewBase(downstream Layer) Base {
	return Base{downstream: downstream}
}

func (b *Base) Name() string { return "base" }

func (b *Base) Downstream() []Layer {
	if b.downstream == nil {
		return nil
	}
	return []Layer{b.downstream}
}

func (b *Base) Open(rc *RequestContext, path string, flags int, mode fs.FileMode) (FD, error) {
	return b.downstream.Open(rc, path, flags, mode)
}

func (b *Base) Close(rc *RequestContext, fd FD) error {
	return b.downstream.Close(rc, fd)
}

func (b *Base) Pread(rc *RequestContext, fd FD, buf []byte, off int64) (int, error) {
	return b.downstream.Pread(rc, fd, buf, off)
}

func (b *Base) Pwrite(rc *RequestContext, fd FD, buf []byte, off int64) (int, error) {
	return b.downstream.Pwrite(rc, fd, buf, off)
}

func (b *Base) Ftruncate(rc *RequestContext, fd FD, size int64) error {
	return b.downstream.Ftruncate(rc, fd, size)
}

func (b *Base) Truncate(rc *RequestContext, path string, size int64) error {
	return b.downstream.Truncate(rc, path, size)
}

func (b *Base) Fstat(rc *RequestContext, fd FD) (Stat, error) {
	return b.downstream.Fstat(rc, fd)
}

func (b *Base) Lstat(rc *RequestContext, path string) (Stat, error) {
	return b.downstream.Lstat(rc, path)
}

func (b *Base) Unlink(rc *RequestContext, path string) error {
	return b.downstream.Unlink(rc, path)
}

func (b *Base) Fsync(rc *RequestContext, fd FD, dataOnly bool) error {
	return b.downstream.Fsync(rc, fd, dataOnly)
}

func (b *Base) Fallocate(rc *RequestContext, fd FD, mode FallocateMode, off, size int64) error {
	return b.downstream.Fallocate(rc, fd, mode, off, size)
}

func (b *Base) Readdir(rc *RequestContext, path string) ([]DirEntry, error) {
	return b.downstream.Readdir(rc, path)
}

func (b *Base) Rename(rc *RequestContext, oldPath, newPath string) error {
	return b.downstream.Rename(rc, oldPath, newPath)
}

func (b *Base) Chmod(rc *RequestContext, path string, mode fs.FileMode) error {
	return b.downstream.Chmod(rc, path, mode)
}

func (b *Base) Destroy() error {
	return b.downstream.Destroy()
}
