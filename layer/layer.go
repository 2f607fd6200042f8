// Package layer defines the operation vtable every layerfs node implements
// and the machinery used to compose nodes into a tree.
package layer

import (
	"io/fs"
	"time"

	"github.com/google/uuid"
)

// FD is an opaque file descriptor scoped to the layer node that issued it.
// A value returned by one node's Open is only meaningful when passed back
// into that same node; layers must never leak a downstream FD to a caller
// except through their own fd table.
type FD int

// InvalidFD is returned by Open on failure, mirroring the POSIX convention
// of a negative descriptor.
const InvalidFD FD = -1

// Stat mirrors the subset of POSIX stat(2) fields the core cares about.
type Stat struct {
	Dev     uint64
	Ino     uint64
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
	AccTime time.Time
}

// DirEntry is a single entry returned by Readdir.
type DirEntry struct {
	Name string
	Mode fs.FileMode
}

// FallocateMode selects the behavior of Fallocate, mirroring the Linux
// fallocate(2) mode flags the block-sparse compression layer needs.
type FallocateMode int

const (
	FallocateDefault FallocateMode = iota
	FallocateKeepSize
	FallocatePunchHole
)

// RequestContext is the per-request, caller-supplied context threaded
// through a call chain. It is not owned by any layer and carries no
// cancellation semantics of its own — the core does not support
// cancellation or timeouts (see dispatch package) — but every request is
// stamped with a correlation ID so a single operation can be traced across
// a demultiplexer fan-out.
type RequestContext struct {
	RequestID uuid.UUID
	// FileContext is an opaque value upper layers may propagate (for
	// example, FUSE file-info). The core never inspects it.
	FileContext any
}

// NewRequestContext creates a fresh per-request context with a new
// correlation ID.
func NewRequestContext() *RequestContext {
	return &RequestContext{RequestID: uuid.New()}
}

// Layer is the uniform operation vtable every node in the tree implements.
// Not every layer gives every operation independent behavior; layers that
// have nothing to add embed Base and get single-downstream passthrough for
// free, overriding only the operations their semantics require.
type Layer interface {
	// Name identifies the layer instance for logging and Status reporting.
	Name() string

	Open(rc *RequestContext, path string, flags int, mode fs.FileMode) (FD, error)
	Close(rc *RequestContext, fd FD) error
	Pread(rc *RequestContext, fd FD, buf []byte, off int64) (int, error)
	Pwrite(rc *RequestContext, fd FD, buf []byte, off int64) (int, error)
	Ftruncate(rc *RequestContext, fd FD, size int64) error
	Truncate(rc *RequestContext, path string, size int64) error
	Fstat(rc *RequestContext, fd FD) (Stat, error)
	Lstat(rc *RequestContext, path string) (Stat, error)
	Unlink(rc *RequestContext, path string) error
	Fsync(rc *RequestContext, fd FD, dataOnly bool) error
	Fallocate(rc *RequestContext, fd FD, mode FallocateMode, off, size int64) error
	Readdir(rc *RequestContext, path string) ([]DirEntry, error)
	Rename(rc *RequestContext, oldPath, newPath string) error
	Chmod(rc *RequestContext, path string, mode fs.FileMode) error

	// Downstream returns this node's children, in declared order. Unary
	// layers return a single-element slice; the demultiplexer returns N;
	// terminal layers return nil.
	Downstream() []Layer

	// Destroy tears the node down. Implementations must call Destroy on
	// their downstream(s) after releasing their own state (post-order
	// teardown), per the tree-lifetime invariant.
	Destroy() error
}

// WrapsFs-style marker: a layer that wraps exactly one downstream can embed
// Base to satisfy Layer with default forwarding, then override the few
// operations it actually transforms.
var _ Layer = (*Base)(nil)
