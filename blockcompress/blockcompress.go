package blockcompress

import (
	"io/fs"
	"sync"

	"github.com/rclone/layerfs/codec"
	"github.com/rclone/layerfs/layer"
	"github.com/rclone/layerfs/locktable"
)

// inodeKey is the per-inode mapping key: (device, inode).
type inodeKey struct {
	Dev uint64
	Ino uint64
}

// inodeEntry is the per-inode block inventory and logical size.
type inodeEntry struct {
	LogicalEOF     int64
	OpenCounter    int
	UnlinkCalled   bool
	Sizes          []uint32
	IsUncompressed []bool
}

// fdEntry is the fixed per-fd mapping: (fd, device, inode, path).
type fdEntry struct {
	Dev  uint64
	Ino  uint64
	Path string
}

// Layer is the block-sparse compression layer.
type Layer struct {
	name       string
	downstream layer.Layer
	codec      codec.Codec
	level      int
	blockSize  int64
	holePunch  bool

	locks *locktable.Table

	mu     sync.Mutex
	fds    map[layer.FD]*fdEntry
	inodes map[inodeKey]*inodeEntry
}

var _ layer.Layer = (*Layer)(nil)

func (l *Layer) Name() string              { return l.name }
func (l *Layer) Downstream() []layer.Layer { return []layer.Layer{l.downstream} }

func (l *Layer) Destroy() error {
	return l.downstream.Destroy()
}

// Readdir, Rename, Chmod, Fsync pass through unchanged: this layer only
// transforms the byte-addressed operations.
func (l *Layer) Readdir(rc *layer.RequestContext, path string) ([]layer.DirEntry, error) {
	return l.downstream.Readdir(rc, path)
}

func (l *Layer) Rename(rc *layer.RequestContext, oldPath, newPath string) error {
	return l.downstream.Rename(rc, oldPath, newPath)
}

func (l *Layer) Chmod(rc *layer.RequestContext, path string, mode fs.FileMode) error {
	return l.downstream.Chmod(rc, path, mode)
}

func (l *Layer) Fsync(rc *layer.RequestContext, fd layer.FD, dataOnly bool) error {
	return l.downstream.Fsync(rc, fd, dataOnly)
}

func (l *Layer) blockIndex(off int64) int {
	return int(off / l.blockSize)
}

// ensureCapacity grows the entry's parallel arrays so indices up to and
// including lastBlock are valid, leaving new slots sparse.
func ensureCapacity(e *inodeEntry, lastBlock int) {
	if lastBlock < len(e.Sizes) {
		return
	}
	n := lastBlock + 1
	sizes := make([]uint32, n)
	copy(sizes, e.Sizes)
	uncompressed := make([]bool, n)
	copy(uncompressed, e.IsUncompressed)
	e.Sizes = sizes
	e.IsUncompressed = uncompressed
}

func (l *Layer) Open(rc *layer.RequestContext, path string, flags int, mode fs.FileMode) (layer.FD, error) {
	fd, err := l.downstream.Open(rc, path, flags, mode)
	if err != nil {
		return layer.InvalidFD, err
	}

	st, statErr := l.downstream.Lstat(rc, path)
	if statErr != nil {
		_ = l.downstream.Close(rc, fd)
		return layer.InvalidFD, statErr
	}
	key := inodeKey{Dev: st.Dev, Ino: st.Ino}

	h := l.locks.AcquireWrite(path)
	defer h.Release()

	l.mu.Lock()
	entry, ok := l.inodes[key]
	l.mu.Unlock()

	const oCreat = 0o100
	const oTrunc = 0o1000

	if !ok {
		if flags&oCreat != 0 && st.Size == 0 {
			entry = &inodeEntry{}
		} else {
			var rebuildErr error
			entry, rebuildErr = l.rebuildFromStorage(rc, fd, st.Size)
			if rebuildErr != nil {
				_ = l.downstream.Close(rc, fd)
				return layer.InvalidFD, rebuildErr
			}
		}
		l.mu.Lock()
		l.inodes[key] = entry
		l.mu.Unlock()
	}

	if flags&oTrunc != 0 {
		entry.LogicalEOF = 0
		entry.Sizes = nil
		entry.IsUncompressed = nil
	}
	entry.OpenCounter++

	l.mu.Lock()
	l.fds[fd] = &fdEntry{Dev: key.Dev, Ino: key.Ino, Path: path}
	l.mu.Unlock()

	return fd, nil
}

func (l *Layer) Close(rc *layer.RequestContext, fd layer.FD) error {
	l.mu.Lock()
	fe, ok := l.fds[fd]
	if ok {
		delete(l.fds, fd)
	}
	l.mu.Unlock()
	if !ok {
		return layer.NewError(l.name, "close", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}

	if err := l.downstream.Close(rc, fd); err != nil {
		return err
	}

	h := l.locks.AcquireWrite(fe.Path)
	defer h.Release()

	key := inodeKey{Dev: fe.Dev, Ino: fe.Ino}
	l.mu.Lock()
	entry, ok := l.inodes[key]
	if ok {
		entry.OpenCounter--
		if entry.UnlinkCalled && entry.OpenCounter == 0 {
			delete(l.inodes, key)
		}
	}
	l.mu.Unlock()
	return nil
}

func (l *Layer) Unlink(rc *layer.RequestContext, path string) error {
	st, statErr := l.downstream.Lstat(rc, path)

	if err := l.downstream.Unlink(rc, path); err != nil {
		return err
	}
	if statErr != nil {
		return nil
	}
	key := inodeKey{Dev: st.Dev, Ino: st.Ino}

	h := l.locks.AcquireWrite(path)
	defer h.Release()

	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.inodes[key]
	if !ok {
		return nil
	}
	if entry.OpenCounter > 0 {
		entry.UnlinkCalled = true
	} else {
		delete(l.inodes, key)
	}
	return nil
}
