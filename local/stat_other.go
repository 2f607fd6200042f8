//go:build !linux

package local

import (
	"io/fs"

	"github.com/rclone/layerfs/layer"
)

// statFromFileInfo on non-Linux platforms reports only what fs.FileInfo
// exposes portably; Dev and Ino stay zero, so the compression layer, which
// keys its per-inode state by (dev, ino) only, sees every file under the
// same key on these platforms.
func statFromFileInfo(info fs.FileInfo) layer.Stat {
	return layer.Stat{
		Size:    info.Size(),
		Mode:    info.Mode(),
		ModTime: info.ModTime(),
	}
}
