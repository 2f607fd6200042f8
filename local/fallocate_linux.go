//go:build linux

package local

import (
	"github.com/detailyang/go-fallocate"
	"golang.org/x/sys/unix"

	"github.com/rclone/layerfs/layer"
)

// Fallocate punches a hole or reserves space for fd, mirrored from
// backend/local/preallocate_unix.go's flag-cycling fallback: try the exact
// flag combination the caller asked for, then fall back to a portable
// fallocate if the filesystem returns ENOTSUP.
func (l *Layer) Fallocate(_ *layer.RequestContext, fd layer.FD, mode layer.FallocateMode, off, size int64) error {
	f, err := l.lookup(fd)
	if err != nil {
		return err
	}
	flags := fallocateFlags(mode)
	err = unix.Fallocate(int(f.Fd()), flags, off, size)
	if err == unix.ENOTSUP || err == unix.EOPNOTSUPP {
		if mode == layer.FallocatePunchHole {
			// Hole punching has no portable fallback: silently skip,
			// matching "silently skipped when the downstream
			// lacks fallocate" rule.
			return nil
		}
		return fallocate.Fallocate(f, off, size)
	}
	if err != nil {
		return layer.NewError(l.name, "fallocate", layer.KindDownstreamFailure, err)
	}
	return nil
}

func fallocateFlags(mode layer.FallocateMode) uint32 {
	switch mode {
	case layer.FallocatePunchHole:
		return unix.FALLOC_FL_KEEP_SIZE | unix.FALLOC_FL_PUNCH_HOLE
	case layer.FallocateKeepSize:
		return unix.FALLOC_FL_KEEP_SIZE
	default:
		return 0
	}
}
