package blockcompress

import (
	"github.com/rclone/layerfs/layer"
)

// rebuildFromStorage reconstructs an inode's inventory by rescanning its
// physical storage, per the crash-recovery algorithm: a process
// that died mid-write leaves no in-memory mapping behind, so the next Open
// of that inode must recover sizes/is_uncompressed/logical_eof purely from
// what is actually on disk, using the codec's magic detection and frame-
// length decoding to tell a compressed block from a raw one.
func (l *Layer) rebuildFromStorage(rc *layer.RequestContext, fd layer.FD, physicalEOF int64) (*inodeEntry, error) {
	entry := &inodeEntry{}
	if physicalEOF <= 0 {
		return entry, nil
	}

	blockCount := int((physicalEOF + l.blockSize - 1) / l.blockSize)
	ensureCapacity(entry, blockCount-1)

	var logicalEOF int64
	scratch := make([]byte, l.blockSize)

	for k := 0; k < blockCount; k++ {
		physOff := int64(k) * l.blockSize
		remaining := physicalEOF - physOff
		readLen := l.blockSize
		if remaining < readLen {
			readLen = remaining
		}
		if readLen <= 0 {
			continue
		}

		buf := scratch[:readLen]
		n, err := l.downstream.Pread(rc, fd, buf, physOff)
		if err != nil {
			return nil, layer.NewError(l.name, "rebuild", layer.KindDownstreamFailure, err)
		}
		buf = buf[:n]
		if n == 0 {
			// A hole: block was never written or was punched out.
			continue
		}

		logicalLen, frameLen, uncompressed, err := l.classifyBlock(buf, k, blockCount, physicalEOF)
		if err != nil {
			return nil, err
		}

		entry.Sizes[k] = uint32(frameLen)
		entry.IsUncompressed[k] = uncompressed

		blockLogicalEnd := int64(k)*l.blockSize + logicalLen
		if blockLogicalEnd > logicalEOF {
			logicalEOF = blockLogicalEnd
		}
	}

	entry.LogicalEOF = logicalEOF
	return entry, nil
}

// classifyBlock inspects a block's stored bytes and returns its decompressed
// length, the actual on-disk frame length (which can be shorter than
// len(stored) — the read is padded out to a full block read by the caller's
// scratch buffer), and whether it was stored raw. The last block may be a
// partial write; every block before it is assumed to have been a full
// blockSize payload when uncompressed, since only the final block can be
// short.
func (l *Layer) classifyBlock(stored []byte, k, blockCount int, physicalEOF int64) (int64, int, bool, error) {
	isLast := k == blockCount-1

	if l.codec.DetectFormat(stored) {
		var size int
		if s, ok := l.codec.DecodeOriginalSize(stored); ok {
			size = s
		} else {
			// Format detected but the frame doesn't carry its own content
			// size (e.g. a streamed codec); fall back to decompressing.
			out, err := l.codec.Decompress(stored)
			if err != nil {
				return 0, 0, false, layer.NewError(l.name, "rebuild", layer.KindInvariantViolation, err)
			}
			size = len(out)
		}
		frameLen, err := l.codec.FindCompressedFrameLen(stored, len(stored), size)
		if err != nil {
			return 0, 0, false, layer.NewError(l.name, "rebuild", layer.KindInvariantViolation, err)
		}
		return int64(size), frameLen, false, nil
	}

	// Not a recognized compressed frame: this block was stored raw. Its
	// logical length equals its physical length, except the final block,
	// whose physical length is exactly what we read (already clamped to
	// the remaining physicalEOF above).
	_ = isLast
	return int64(len(stored)), len(stored), true, nil
}
