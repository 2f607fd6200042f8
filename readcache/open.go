package readcache

import (
	"io/fs"

	"github.com/rclone/layerfs/layer"
)

const oTrunc = 0o1000

// Open implements the open contract. The real inode is only known once the
// file actually exists, so it is read back via Fstat on the fd downstream's
// Open just returned — never from a pre-open Lstat, which for an O_CREAT
// open of a not-yet-existing path would fail and leave every such file
// indexed under the same zero-value inode. A pre-open Lstat is still taken,
// but only to learn the pre-truncation size an O_TRUNC open needs to purge;
// it is discarded if the path didn't exist yet.
func (l *Layer) Open(rc *layer.RequestContext, path string, flags int, mode fs.FileMode) (layer.FD, error) {
	preStat, preErr := l.downstream.Lstat(rc, path)

	fd, err := l.downstream.Open(rc, path, flags, mode)
	if err != nil {
		return layer.InvalidFD, err
	}

	st, statErr := l.downstream.Fstat(rc, fd)
	if statErr != nil {
		_ = l.downstream.Close(rc, fd)
		return layer.InvalidFD, statErr
	}
	inode := st.Ino

	l.mu.Lock()
	state, ok := l.inodes[inode]
	if !ok {
		state = &inodeState{}
		l.inodes[inode] = state
	}
	state.openCounter++
	l.fdInode[fd] = inode
	l.mu.Unlock()

	if flags&oTrunc != 0 && preErr == nil {
		l.invalidateRange(inode, preStat.Size)
	}

	return fd, nil
}

// invalidateRange purges every cached block whose start lies within
// [0, size), the range the O_TRUNC/shrink paths need cleared.
func (l *Layer) invalidateRange(inode uint64, size int64) {
	if size <= 0 {
		l.invalidateAll(inode)
		return
	}
	last := l.blockIndex(size - 1)
	for k := 0; k <= last; k++ {
		_ = l.backend.Remove(l.blockKey(inode, k))
	}
}

// invalidateAll purges cached blocks 0..maxBlock[inode], the highest block
// index this layer has cached for inode; extcache.Backend has no key
// enumeration, so that high-water mark is the only bound available.
func (l *Layer) invalidateAll(inode uint64) {
	l.mu.Lock()
	hi := l.maxBlock[inode]
	l.mu.Unlock()
	for k := 0; k <= hi; k++ {
		_ = l.backend.Remove(l.blockKey(inode, k))
	}
}
