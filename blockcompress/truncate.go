package blockcompress

import (
	"github.com/rclone/layerfs/layer"
)

// Ftruncate implements the truncate contract: shrinking drops
// whole blocks past the new length and recompresses the new partial last
// block from its decompressed prefix; growing only advances logical_eof,
// since sparse-block reads already zero-fill holes.
func (l *Layer) Ftruncate(rc *layer.RequestContext, fd layer.FD, size int64) error {
	if size < 0 {
		return layer.NewError(l.name, "ftruncate", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	fe, entry, err := l.entryFor(fd)
	if err != nil {
		return err
	}

	h := l.locks.AcquireWrite(fe.Path)
	defer h.Release()

	if size == entry.LogicalEOF {
		return nil
	}

	if size > entry.LogicalEOF {
		entry.LogicalEOF = size
		return nil
	}

	if size == 0 {
		for k := range entry.Sizes {
			if entry.Sizes[k] == 0 {
				continue
			}
			physOff := int64(k) * l.blockSize
			if l.holePunch {
				_ = l.downstream.Fallocate(rc, fd, layer.FallocatePunchHole, physOff, int64(entry.Sizes[k]))
			}
		}
		if err := l.downstream.Ftruncate(rc, fd, 0); err != nil {
			return err
		}
		entry.Sizes = nil
		entry.IsUncompressed = nil
		entry.LogicalEOF = 0
		return nil
	}

	lastBlock := l.blockIndex(size - 1)
	blockStart := int64(lastBlock) * l.blockSize
	keepLen := size - blockStart

	// Drop every block past lastBlock entirely.
	for k := lastBlock + 1; k < len(entry.Sizes); k++ {
		if entry.Sizes[k] == 0 {
			continue
		}
		physOff := int64(k) * l.blockSize
		if l.holePunch {
			_ = l.downstream.Fallocate(rc, fd, layer.FallocatePunchHole, physOff, int64(entry.Sizes[k]))
		}
	}
	if lastBlock+1 < len(entry.Sizes) {
		entry.Sizes = entry.Sizes[:lastBlock+1]
		entry.IsUncompressed = entry.IsUncompressed[:lastBlock+1]
	}

	// The physical extent to truncate to: blockStart if lastBlock is sparse
	// (nothing to recompress), else blockStart plus whatever writeBlock
	// actually wrote for the recompressed last block.
	newPhysicalSize := blockStart
	if lastBlock < len(entry.Sizes) && entry.Sizes[lastBlock] != 0 {
		full, err := l.readBlockRaw(rc, fe.Path, fd, entry, lastBlock)
		if err != nil {
			return err
		}
		if int64(len(full)) > keepLen {
			full = full[:keepLen]
		} else if int64(len(full)) < keepLen {
			grown := make([]byte, keepLen)
			copy(grown, full)
			full = grown
		}
		if err := l.writeBlock(rc, fd, entry, lastBlock, full); err != nil {
			return err
		}
		newPhysicalSize = blockStart + int64(entry.Sizes[lastBlock])
	}

	if err := l.downstream.Ftruncate(rc, fd, newPhysicalSize); err != nil {
		return err
	}

	entry.LogicalEOF = size
	return nil
}

// Truncate implements the path-addressed variant per the documented Open
// Question decision: open, ftruncate, close, since this layer has no
// path-only entry point into its inode bookkeeping otherwise.
func (l *Layer) Truncate(rc *layer.RequestContext, path string, size int64) error {
	fd, err := l.Open(rc, path, osRDWR, 0)
	if err != nil {
		return err
	}
	defer l.Close(rc, fd)
	return l.Ftruncate(rc, fd, size)
}

// osRDWR mirrors os.O_RDWR without importing the os package here, keeping
// this file's dependency surface limited to the layer contract it adapts.
const osRDWR = 2

// Fallocate passes through to downstream unchanged: preallocation and
// hole-punching both operate on physical, not logical, extents, and the
// block-write/truncate paths above already issue their own punches keyed to
// each block's compressed size.
func (l *Layer) Fallocate(rc *layer.RequestContext, fd layer.FD, mode layer.FallocateMode, off, size int64) error {
	return l.downstream.Fallocate(rc, fd, mode, off, size)
}
