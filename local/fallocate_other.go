//go:build !linux

package local

import "github.com/rclone/layerfs/layer"

// Fallocate is a no-op outside Linux: hole-punching and preallocation are
// Linux fallocate(2) concepts with no portable equivalent, so non-Linux
// builds report success without reclaiming or reserving anything.
func (l *Layer) Fallocate(_ *layer.RequestContext, fd layer.FD, mode layer.FallocateMode, off, size int64) error {
	if _, err := l.lookup(fd); err != nil {
		return err
	}
	return nil
}
