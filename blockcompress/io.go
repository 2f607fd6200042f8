package blockcompress

import (
	"github.com/rclone/layerfs/layer"
)

func (l *Layer) entryFor(fd layer.FD) (*fdEntry, *inodeEntry, error) {
	l.mu.Lock()
	fe, ok := l.fds[fd]
	l.mu.Unlock()
	if !ok {
		return nil, nil, layer.NewError(l.name, "lookup", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	key := inodeKey{Dev: fe.Dev, Ino: fe.Ino}
	l.mu.Lock()
	entry, ok := l.inodes[key]
	l.mu.Unlock()
	if !ok {
		return nil, nil, layer.NewError(l.name, "lookup", layer.KindNotFound, layer.ErrNotFound)
	}
	return fe, entry, nil
}

// Pwrite implements the pwrite contract: each block in the
// write's range is compressed independently (or stored raw if compression
// did not shrink it), written at its own physical offset, and, when
// free_space is enabled, any previously-longer payload at that block is
// hole-punched.
func (l *Layer) Pwrite(rc *layer.RequestContext, fd layer.FD, buf []byte, off int64) (int, error) {
	if off < 0 {
		return 0, layer.NewError(l.name, "pwrite", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	fe, entry, err := l.entryFor(fd)
	if err != nil {
		return 0, err
	}

	h := l.locks.AcquireWrite(fe.Path)
	defer h.Release()

	n := len(buf)
	if n == 0 {
		return 0, nil
	}

	firstBlock := l.blockIndex(off)
	lastBlock := l.blockIndex(off + int64(n) - 1)
	ensureCapacity(entry, lastBlock)

	for k := firstBlock; k <= lastBlock; k++ {
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

		// A partial-block write must be merged with whatever is already
		// stored at this block before recompressing, or the untouched
		// tail/head of the block would be lost. The merged block reaches
		// only as far as the written range or the existing content,
		// whichever ends later, so a file's final block is stored short.
		full, err := l.readBlockRaw(rc, fe.Path, fd, entry, k)
		if err != nil {
			return 0, err
		}
		if need := int(reqEnd - blockStart); len(full) < need {
			grown := make([]byte, need)
			copy(grown, full)
			full = grown
		}
		copy(full[reqStart-blockStart:reqEnd-blockStart], buf[reqStart-off:reqEnd-off])

		if err := l.writeBlock(rc, fd, entry, k, full); err != nil {
			return 0, err
		}
	}

	if off+int64(n) > entry.LogicalEOF {
		entry.LogicalEOF = off + int64(n)
	}
	return n, nil
}

// writeBlock compresses (or falls back to raw) the payload for block k,
// writes it at its physical offset, punches the shrunk tail when enabled,
// and updates the block's inventory entries.
func (l *Layer) writeBlock(rc *layer.RequestContext, fd layer.FD, entry *inodeEntry, k int, payload []byte) error {
	compressed, err := l.codec.Compress(payload, l.level)
	if err != nil {
		return layer.NewError(l.name, "pwrite", layer.KindCodecFailure, err)
	}

	store := compressed
	uncompressed := false
	if len(compressed) >= len(payload) {
		store = payload
		uncompressed = true
	}

	oldSize := uint32(0)
	if k < len(entry.Sizes) {
		oldSize = entry.Sizes[k]
	}

	physOff := int64(k) * l.blockSize
	if _, err := l.downstream.Pwrite(rc, fd, store, physOff); err != nil {
		return err
	}

	newSize := uint32(len(store))
	if l.holePunch && newSize < oldSize {
		_ = l.downstream.Fallocate(rc, fd, layer.FallocatePunchHole, physOff+int64(newSize), int64(oldSize-newSize))
	}

	entry.Sizes[k] = newSize
	entry.IsUncompressed[k] = uncompressed
	return nil
}

// readBlockRaw returns block k's full decompressed payload (nil for a
// sparse or never-written block; otherwise up to blockSize bytes, fewer when
// the block's stored content ends before the block boundary), used as the
// merge base for a partial-block write.
func (l *Layer) readBlockRaw(rc *layer.RequestContext, path string, fd layer.FD, entry *inodeEntry, k int) ([]byte, error) {
	if k >= len(entry.Sizes) || entry.Sizes[k] == 0 {
		return nil, nil
	}
	physOff := int64(k) * l.blockSize
	stored := make([]byte, entry.Sizes[k])
	if _, err := l.downstream.Pread(rc, fd, stored, physOff); err != nil {
		return nil, err
	}
	if entry.IsUncompressed[k] {
		return stored, nil
	}
	out, err := l.codec.Decompress(stored)
	if err != nil {
		return nil, layer.NewError(l.name, "pwrite", layer.KindCodecFailure, err)
	}
	return out, nil
}

// Pread implements the pread contract: clamp to logical EOF,
// zero-fill sparse blocks, decompress compressed ones.
func (l *Layer) Pread(rc *layer.RequestContext, fd layer.FD, buf []byte, off int64) (int, error) {
	if off < 0 {
		return 0, layer.NewError(l.name, "pread", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	fe, entry, err := l.entryFor(fd)
	if err != nil {
		return 0, err
	}

	h := l.locks.AcquireRead(fe.Path)
	defer h.Release()

	if off >= entry.LogicalEOF {
		return 0, nil
	}
	n := len(buf)
	if off+int64(n) > entry.LogicalEOF {
		n = int(entry.LogicalEOF - off)
	}
	if n <= 0 {
		return 0, nil
	}

	firstBlock := l.blockIndex(off)
	lastBlock := l.blockIndex(off + int64(n) - 1)

	for k := firstBlock; k <= lastBlock; k++ {
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
		dst := buf[reqStart-off : reqEnd-off]

		if k >= len(entry.Sizes) || entry.Sizes[k] == 0 {
			for i := range dst {
				dst[i] = 0
			}
			continue
		}

		full, err := l.readBlockRaw(rc, fe.Path, fd, entry, k)
		if err != nil {
			return 0, err
		}
		lo := reqStart - blockStart
		hi := reqEnd - blockStart
		if hi > int64(len(full)) {
			hi = int64(len(full))
		}
		copied := 0
		if lo < hi {
			copied = copy(dst, full[lo:hi])
		}
		// Bytes past the end of the block's stored content read as zeros.
		for i := copied; i < len(dst); i++ {
			dst[i] = 0
		}
	}

	return n, nil
}
