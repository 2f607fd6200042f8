package blockcompress

import (
	"github.com/rclone/layerfs/layer"
)

// Fstat overrides st_size with the tracked logical_eof: the physical file is
// generally shorter (sparse, compressed blocks) than what callers above this
// layer should observe.
func (l *Layer) Fstat(rc *layer.RequestContext, fd layer.FD) (layer.Stat, error) {
	fe, entry, err := l.entryFor(fd)
	if err != nil {
		return layer.Stat{}, err
	}
	st, err := l.downstream.Fstat(rc, fd)
	if err != nil {
		return layer.Stat{}, err
	}

	h := l.locks.AcquireRead(fe.Path)
	st.Size = entry.LogicalEOF
	h.Release()
	return st, nil
}

// Lstat has no fd to look up an existing mapping by, so it must rebuild one
// from storage whenever the inode isn't already tracked. It takes a read
// lock first and upgrades to a write lock only if a rebuild turns out to be
// necessary, re-checking after the upgrade in case a concurrent Open already
// populated the entry.
func (l *Layer) Lstat(rc *layer.RequestContext, path string) (layer.Stat, error) {
	st, err := l.downstream.Lstat(rc, path)
	if err != nil {
		return layer.Stat{}, err
	}
	key := inodeKey{Dev: st.Dev, Ino: st.Ino}

	h := l.locks.AcquireRead(path)
	l.mu.Lock()
	entry, ok := l.inodes[key]
	l.mu.Unlock()
	if ok {
		st.Size = entry.LogicalEOF
		h.Release()
		return st, nil
	}

	h = h.Upgrade()
	defer h.Release()

	l.mu.Lock()
	entry, ok = l.inodes[key]
	l.mu.Unlock()
	if !ok {
		fd, openErr := l.downstream.Open(rc, path, osRDWR, 0)
		if openErr != nil {
			return layer.Stat{}, openErr
		}
		rebuilt, rebuildErr := l.rebuildFromStorage(rc, fd, st.Size)
		_ = l.downstream.Close(rc, fd)
		if rebuildErr != nil {
			return layer.Stat{}, rebuildErr
		}
		entry = rebuilt
		l.mu.Lock()
		l.inodes[key] = entry
		l.mu.Unlock()
	}

	st.Size = entry.LogicalEOF
	return st, nil
}
