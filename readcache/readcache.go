// Package readcache implements the read-cache layer: fixed-size blocks of
// uncompressed file contents, keyed by (inode, block-index), with coalesced
// miss reads and write-through/truncate/unlink invalidation.
// Grounded on vfs/vfscache's block-cache contract observed through its
// surviving test file, adapted from vfscache's disk-backed chunk store to an
// in-process cache fronting an arbitrary downstream layer, storing blocks
// through the narrow insert/get/remove/contains capability extcache.Backend.
package readcache

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/rclone/layerfs/config/configmap"
	"github.com/rclone/layerfs/config/configstruct"
	"github.com/rclone/layerfs/extcache"
	"github.com/rclone/layerfs/layer"
)

// Options is the read-cache layer's config schema.
type Options struct {
	BlockSize int64 `config:"block_size" default:"131072"`
	MaxBlocks int   `config:"max_blocks" default:"4096"`
	Backend   string `config:"backend" default:"memory"`
	DiskPath  string `config:"disk_path" default:""`
}

func init() {
	layer.Register(&layer.RegInfo{
		Name:        "readcache",
		Description: "Block-keyed read cache with coalesced miss reads",
		Options: []layer.Option{
			{Name: "block_size", Default: 131072, Help: "cache block size in bytes"},
			{Name: "max_blocks", Default: 4096, Help: "accepted but not enforced: the layer does not read it and neither backend evicts entries"},
			{Name: "backend", Default: "memory", Help: "\"memory\" or \"disk\""},
			{Name: "disk_path", Default: "", Help: "bbolt file path when backend=disk"},
		},
		NewLayer: func(_ context.Context, name string, downstreams []layer.Layer, m configmap.Mapper) (layer.Layer, error) {
			if len(downstreams) != 1 {
				return nil, layer.NewError(name, "init", layer.KindConfigInvalid, layer.ErrConfigInvalid)
			}
			var opt Options
			if err := configstruct.Set(m, &opt); err != nil {
				return nil, layer.NewError(name, "init", layer.KindConfigInvalid, err)
			}
			var backend extcache.Backend
			switch opt.Backend {
			case "disk":
				db, err := extcache.NewDisk(opt.DiskPath)
				if err != nil {
					return nil, layer.NewError(name, "init", layer.KindConfigInvalid, err)
				}
				backend = db
			default:
				backend = extcache.NewMemory()
			}
			return New(name, downstreams[0], backend, opt), nil
		},
	})
}

// inodeState tracks the open-fd refcount and unlink flag the
// "inode → {open_counter, unlinked}" mapping describes.
type inodeState struct {
	openCounter int
	unlinked    bool
}

// Layer is the read-cache layer.
type Layer struct {
	name       string
	downstream layer.Layer
	backend    extcache.Backend
	blockSize  int64

	mu      sync.Mutex
	fdInode map[layer.FD]uint64
	inodes  map[uint64]*inodeState
	// maxBlock tracks the highest block index ever cached for an inode,
	// since extcache.Backend exposes no key-enumeration: a full purge
	// (unlink, O_TRUNC to zero) needs an upper bound to iterate to.
	maxBlock map[uint64]int
}

var _ layer.Layer = (*Layer)(nil)

// New builds a read-cache layer over downstream, storing cached blocks in
// backend.
func New(name string, downstream layer.Layer, backend extcache.Backend, opt Options) *Layer {
	if opt.BlockSize <= 0 {
		opt.BlockSize = 131072
	}
	return &Layer{
		name:       name,
		downstream: downstream,
		backend:    backend,
		blockSize:  opt.BlockSize,
		fdInode:    make(map[layer.FD]uint64),
		inodes:     make(map[uint64]*inodeState),
		maxBlock:   make(map[uint64]int),
	}
}

func (l *Layer) Name() string              { return l.name }
func (l *Layer) Downstream() []layer.Layer { return []layer.Layer{l.downstream} }

func (l *Layer) Destroy() error {
	_ = l.backend.Destroy()
	return l.downstream.Destroy()
}

func (l *Layer) Readdir(rc *layer.RequestContext, path string) ([]layer.DirEntry, error) {
	return l.downstream.Readdir(rc, path)
}

func (l *Layer) Rename(rc *layer.RequestContext, oldPath, newPath string) error {
	return l.downstream.Rename(rc, oldPath, newPath)
}

func (l *Layer) Chmod(rc *layer.RequestContext, path string, mode fs.FileMode) error {
	return l.downstream.Chmod(rc, path, mode)
}

func (l *Layer) Fsync(rc *layer.RequestContext, fd layer.FD, dataOnly bool) error {
	return l.downstream.Fsync(rc, fd, dataOnly)
}

func (l *Layer) Fallocate(rc *layer.RequestContext, fd layer.FD, mode layer.FallocateMode, off, size int64) error {
	return l.downstream.Fallocate(rc, fd, mode, off, size)
}

func (l *Layer) Lstat(rc *layer.RequestContext, path string) (layer.Stat, error) {
	return l.downstream.Lstat(rc, path)
}

func (l *Layer) blockKey(inode uint64, block int) string {
	return fmt.Sprintf("%d/%d", inode, block)
}

func (l *Layer) blockIndex(off int64) int {
	return int(off / l.blockSize)
}

func (l *Layer) noteBlock(inode uint64, k int) {
	l.mu.Lock()
	if k > l.maxBlock[inode] {
		l.maxBlock[inode] = k
	}
	l.mu.Unlock()
}
