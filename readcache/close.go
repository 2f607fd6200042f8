package readcache

import "github.com/rclone/layerfs/layer"

// Close implements the close contract: decrement the inode's open
// counter and, if it reaches zero while the name was unlinked, purge every
// cached block for that inode.
func (l *Layer) Close(rc *layer.RequestContext, fd layer.FD) error {
	l.mu.Lock()
	inode, ok := l.fdInode[fd]
	if ok {
		delete(l.fdInode, fd)
	}
	l.mu.Unlock()
	if !ok {
		return layer.NewError(l.name, "close", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}

	if err := l.downstream.Close(rc, fd); err != nil {
		return err
	}

	l.mu.Lock()
	state := l.inodes[inode]
	purge := false
	if state != nil {
		state.openCounter--
		if state.openCounter <= 0 && state.unlinked {
			purge = true
			delete(l.inodes, inode)
		}
	}
	l.mu.Unlock()

	if purge {
		l.invalidateAll(inode)
	}
	return nil
}

// Unlink implements the unlink contract: delete the name via
// downstream; if fds remain open against the inode, defer the purge by
// marking it unlinked, else purge immediately.
func (l *Layer) Unlink(rc *layer.RequestContext, path string) error {
	st, statErr := l.downstream.Lstat(rc, path)

	if err := l.downstream.Unlink(rc, path); err != nil {
		return err
	}
	if statErr != nil {
		return nil
	}
	inode := st.Ino

	l.mu.Lock()
	state, ok := l.inodes[inode]
	open := ok && state.openCounter > 0
	if open {
		state.unlinked = true
	}
	l.mu.Unlock()

	if !open {
		l.invalidateAll(inode)
	}
	return nil
}
