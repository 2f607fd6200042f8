package readcache

import "github.com/rclone/layerfs/layer"

// Ftruncate implements the ftruncate contract: read the current
// size, then either extend the cached old-last-block with zeros up to its
// new end (the new size or the block boundary, whichever comes first), or
// drop every cached block past the new last block
// and shrink a partial new-last-block's cached payload.
func (l *Layer) Ftruncate(rc *layer.RequestContext, fd layer.FD, size int64) error {
	if size < 0 {
		return layer.NewError(l.name, "ftruncate", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	inode, err := l.inodeFor(fd)
	if err != nil {
		return err
	}

	st, err := l.downstream.Fstat(rc, fd)
	if err != nil {
		return err
	}
	oldSize := st.Size

	if err := l.downstream.Ftruncate(rc, fd, size); err != nil {
		return err
	}

	if size >= oldSize {
		if oldSize > 0 {
			oldLast := l.blockIndex(oldSize - 1)
			l.extendCachedBlockWithZeros(inode, oldLast, size)
		}
		return nil
	}

	if size == 0 {
		l.invalidateAll(inode)
		return nil
	}

	newLast := l.blockIndex(size - 1)
	l.mu.Lock()
	hi := l.maxBlock[inode]
	l.mu.Unlock()
	for k := newLast + 1; k <= hi; k++ {
		_ = l.backend.Remove(l.blockKey(inode, k))
	}

	blockStart := int64(newLast) * l.blockSize
	keepLen := size - blockStart
	key := l.blockKey(inode, newLast)
	if cached, ok := l.backend.Get(key); ok && int64(len(cached)) > keepLen {
		_ = l.backend.Insert(key, append([]byte(nil), cached[:keepLen]...))
	}

	return nil
}

func (l *Layer) extendCachedBlockWithZeros(inode uint64, block int, size int64) {
	key := l.blockKey(inode, block)
	cached, ok := l.backend.Get(key)
	if !ok {
		return
	}
	end := l.blockSize
	if rel := size - int64(block)*l.blockSize; rel < end {
		end = rel
	}
	if int64(len(cached)) >= end {
		return
	}
	grown := make([]byte, end)
	copy(grown, cached)
	_ = l.backend.Insert(key, grown)
}

// Fstat passes through unchanged: the read cache never alters reported
// size, only the bytes observed through Pread.
func (l *Layer) Fstat(rc *layer.RequestContext, fd layer.FD) (layer.Stat, error) {
	return l.downstream.Fstat(rc, fd)
}

// Truncate has no fd to resolve an inode from directly; forward to
// downstream and invalidate via a fresh Lstat, mirroring the compression
// layer's "no path-only entry point" rationale but without needing an
// open/close round trip since cache invalidation does not require the
// layer's own fd bookkeeping.
func (l *Layer) Truncate(rc *layer.RequestContext, path string, size int64) error {
	st, statErr := l.downstream.Lstat(rc, path)
	if err := l.downstream.Truncate(rc, path, size); err != nil {
		return err
	}
	if statErr != nil {
		return nil
	}
	inode := st.Ino
	if size < st.Size {
		if size == 0 {
			l.invalidateAll(inode)
		} else {
			newLast := l.blockIndex(size - 1)
			l.mu.Lock()
			hi := l.maxBlock[inode]
			l.mu.Unlock()
			for k := newLast + 1; k <= hi; k++ {
				_ = l.backend.Remove(l.blockKey(inode, k))
			}
		}
	}
	return nil
}
