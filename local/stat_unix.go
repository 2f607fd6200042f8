//go:build linux

package local

import (
	"io/fs"
	"syscall"
	"time"

	"github.com/rclone/layerfs/layer"
)

// statFromFileInfo extracts (dev, ino) and access/mod times from the
// syscall.Stat_t underlying info, the same extraction backend/local's
// stat_unix.go and metadata_unix.go perform for their Object.Stat paths.
func statFromFileInfo(info fs.FileInfo) layer.Stat {
	st := layer.Stat{
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return st
	}
	st.Dev = uint64(sys.Dev)
	st.Ino = uint64(sys.Ino)
	st.AccTime = time.Unix(sys.Atim.Unix())
	return st
}
