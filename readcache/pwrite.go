package readcache

import "github.com/rclone/layerfs/layer"

// Pwrite implements the pwrite contract: forward unchanged to
// downstream, then for every already-cached block the write overlaps,
// replace its cached bytes with the written bytes (write-through). Blocks
// not currently cached are left alone — no new entry is created on write.
func (l *Layer) Pwrite(rc *layer.RequestContext, fd layer.FD, buf []byte, off int64) (int, error) {
	inode, err := l.inodeFor(fd)
	if err != nil {
		return 0, err
	}

	n, err := l.downstream.Pwrite(rc, fd, buf, off)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return n, nil
	}

	firstBlock := l.blockIndex(off)
	lastBlock := l.blockIndex(off + int64(n) - 1)

	for k := firstBlock; k <= lastBlock; k++ {
		key := l.blockKey(inode, k)
		cached, ok := l.backend.Get(key)
		if !ok {
			continue
		}
		blockStart := int64(k) * l.blockSize
		blockEnd := blockStart + l.blockSize
		reqStart := off
		if blockStart > reqStart {
			reqStart = blockStart
		}
		reqEnd := off + int64(n)
		if blockEnd < reqEnd {
			reqEnd = blockEnd
		}

		need := reqEnd - blockStart
		if int64(len(cached)) < need {
			grown := make([]byte, need)
			copy(grown, cached)
			cached = grown
		}
		copy(cached[reqStart-blockStart:reqEnd-blockStart], buf[reqStart-off:reqEnd-off])
		_ = l.backend.Insert(key, cached)
	}

	return n, nil
}
