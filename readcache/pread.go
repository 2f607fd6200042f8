package readcache

import "github.com/rclone/layerfs/layer"

func (l *Layer) inodeFor(fd layer.FD) (uint64, error) {
	l.mu.Lock()
	inode, ok := l.fdInode[fd]
	l.mu.Unlock()
	if !ok {
		return 0, layer.NewError(l.name, "lookup", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	return inode, nil
}

// Pread implements the pread contract: scan the block-aligned
// range in order, copying cache hits directly and coalescing any run of
// consecutive misses into a single downstream pread before inserting each
// of that run's blocks into the cache.
func (l *Layer) Pread(rc *layer.RequestContext, fd layer.FD, buf []byte, off int64) (int, error) {
	inode, err := l.inodeFor(fd)
	if err != nil {
		return 0, err
	}
	n := len(buf)
	if n == 0 {
		return 0, nil
	}

	firstBlock := l.blockIndex(off)
	lastBlock := l.blockIndex(off + int64(n) - 1)

	missRunStart := -1
	delivered := int64(0)
	short := false

	flushMiss := func(uptoBlock int) error {
		if missRunStart < 0 {
			return nil
		}
		runOff := int64(missRunStart) * l.blockSize
		runLen := (int64(uptoBlock-missRunStart) + 1) * l.blockSize
		runBuf := make([]byte, runLen)
		nread, rerr := l.downstream.Pread(rc, fd, runBuf, runOff)
		if rerr != nil {
			return rerr
		}
		runBuf = runBuf[:nread]
		if int64(nread) < runLen {
			short = true
		}

		for k := missRunStart; k <= uptoBlock; k++ {
			blockStart := int64(k) * l.blockSize
			relStart := blockStart - runOff
			if relStart >= int64(len(runBuf)) {
				break
			}
			relEnd := relStart + l.blockSize
			if relEnd > int64(len(runBuf)) {
				relEnd = int64(len(runBuf))
			}
			block := append([]byte(nil), runBuf[relStart:relEnd]...)
			_ = l.backend.Insert(l.blockKey(inode, k), block)
			l.noteBlock(inode, k)

			delivered += l.copyBlockIntoCaller(buf, off, n, k, block)
		}
		missRunStart = -1
		return nil
	}

	for k := firstBlock; k <= lastBlock; k++ {
		if short {
			break
		}
		key := l.blockKey(inode, k)
		cached, ok := l.backend.Get(key)
		if ok {
			if err := flushMiss(k - 1); err != nil {
				return int(delivered), err
			}
			delivered += l.copyBlockIntoCaller(buf, off, n, k, cached)
			continue
		}
		if missRunStart < 0 {
			missRunStart = k
		}
	}
	if err := flushMiss(lastBlock); err != nil {
		return int(delivered), err
	}

	return int(delivered), nil
}

// copyBlockIntoCaller copies the portion of block (logical index k) that
// overlaps [off, off+n) into buf, clamping to block's actual length, and
// returns how many bytes were copied.
func (l *Layer) copyBlockIntoCaller(buf []byte, off int64, n int, k int, block []byte) int64 {
	blockStart := int64(k) * l.blockSize
	blockEnd := blockStart + int64(len(block))
	reqStart := off
	if blockStart > reqStart {
		reqStart = blockStart
	}
	reqEnd := off + int64(n)
	if blockEnd < reqEnd {
		reqEnd = blockEnd
	}
	if reqStart >= reqEnd {
		return 0
	}
	copy(buf[reqStart-off:reqEnd-off], block[reqStart-blockStart:reqEnd-blockStart])
	return reqEnd - reqStart
}
