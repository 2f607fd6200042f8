// Package local is the terminal layer: it performs the native POSIX calls
// and returns their result verbatim, serving as the base case every layer
// chain eventually recurses into. Grounded on backend/local's stat/fadvise/
// preallocate/directio helpers, adapted from an fs.Fs backend's Object
// methods to the layer vtable's fd-indexed operations.
package local

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/rclone/layerfs/config/configmap"
	"github.com/rclone/layerfs/layer"
)

func init() {
	layer.Register(&layer.RegInfo{
		Name:        "local",
		Description: "Terminal layer performing native POSIX calls against a host directory",
		NewLayer: func(_ context.Context, name string, downstreams []layer.Layer, _ configmap.Mapper) (layer.Layer, error) {
			if len(downstreams) != 0 {
				return nil, layer.NewError(name, "init", layer.KindConfigInvalid, layer.ErrConfigInvalid)
			}
			return New(name), nil
		},
	})
}

// Layer is the terminal (leaf) node: it has no downstream and owns real
// os.File handles, keyed by the layer.FD it hands back to its caller.
type Layer struct {
	name string

	mu     sync.Mutex
	files  map[layer.FD]*os.File
	nextFD layer.FD
}

var _ layer.Layer = (*Layer)(nil)

// New returns a terminal layer named name, rooted wherever absolute paths
// passed to Open/Lstat/etc. point — the local layer does not itself chroot
// or rewrite paths.
func New(name string) *Layer {
	return &Layer{name: name, files: make(map[layer.FD]*os.File)}
}

func (l *Layer) Name() string { return l.name }

func (l *Layer) Downstream() []layer.Layer { return nil }

func (l *Layer) Open(_ *layer.RequestContext, path string, flags int, mode fs.FileMode) (layer.FD, error) {
	f, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return layer.InvalidFD, layer.NewError(l.name, "open", layer.KindDownstreamFailure, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fd := l.nextFD
	l.nextFD++
	l.files[fd] = f
	return fd, nil
}

func (l *Layer) lookup(fd layer.FD) (*os.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, ok := l.files[fd]
	if !ok {
		return nil, layer.NewError(l.name, "lookup", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	return f, nil
}

func (l *Layer) Close(_ *layer.RequestContext, fd layer.FD) error {
	f, err := l.lookup(fd)
	if err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.files, fd)
	l.mu.Unlock()
	if err := f.Close(); err != nil {
		return layer.NewError(l.name, "close", layer.KindDownstreamFailure, err)
	}
	return nil
}

func (l *Layer) Pread(_ *layer.RequestContext, fd layer.FD, buf []byte, off int64) (int, error) {
	f, err := l.lookup(fd)
	if err != nil {
		return 0, err
	}
	n, err := f.ReadAt(buf, off)
	if err != nil && n == 0 && !errors.Is(err, io.EOF) {
		return 0, layer.NewError(l.name, "pread", layer.KindDownstreamFailure, err)
	}
	return n, nil
}

func (l *Layer) Pwrite(_ *layer.RequestContext, fd layer.FD, buf []byte, off int64) (int, error) {
	f, err := l.lookup(fd)
	if err != nil {
		return 0, err
	}
	n, err := f.WriteAt(buf, off)
	if err != nil {
		return n, layer.NewError(l.name, "pwrite", layer.KindDownstreamFailure, err)
	}
	return n, nil
}

func (l *Layer) Ftruncate(_ *layer.RequestContext, fd layer.FD, size int64) error {
	f, err := l.lookup(fd)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		return layer.NewError(l.name, "ftruncate", layer.KindDownstreamFailure, err)
	}
	return nil
}

func (l *Layer) Truncate(_ *layer.RequestContext, path string, size int64) error {
	if err := os.Truncate(path, size); err != nil {
		return layer.NewError(l.name, "truncate", layer.KindDownstreamFailure, err)
	}
	return nil
}

func (l *Layer) Fstat(_ *layer.RequestContext, fd layer.FD) (layer.Stat, error) {
	f, err := l.lookup(fd)
	if err != nil {
		return layer.Stat{}, err
	}
	info, err := f.Stat()
	if err != nil {
		return layer.Stat{}, layer.NewError(l.name, "fstat", layer.KindDownstreamFailure, err)
	}
	return statFromFileInfo(info), nil
}

func (l *Layer) Lstat(_ *layer.RequestContext, path string) (layer.Stat, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return layer.Stat{}, layer.NewError(l.name, "lstat", layer.KindDownstreamFailure, err)
	}
	return statFromFileInfo(info), nil
}

func (l *Layer) Unlink(_ *layer.RequestContext, path string) error {
	if err := os.Remove(path); err != nil {
		return layer.NewError(l.name, "unlink", layer.KindDownstreamFailure, err)
	}
	return nil
}

func (l *Layer) Fsync(_ *layer.RequestContext, fd layer.FD, _ bool) error {
	f, err := l.lookup(fd)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return layer.NewError(l.name, "fsync", layer.KindDownstreamFailure, err)
	}
	return nil
}

func (l *Layer) Readdir(_ *layer.RequestContext, path string) ([]layer.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, layer.NewError(l.name, "readdir", layer.KindDownstreamFailure, err)
	}
	out := make([]layer.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, layer.DirEntry{Name: e.Name(), Mode: e.Type()})
	}
	return out, nil
}

func (l *Layer) Rename(_ *layer.RequestContext, oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return layer.NewError(l.name, "rename", layer.KindDownstreamFailure, err)
	}
	return nil
}

func (l *Layer) Chmod(_ *layer.RequestContext, path string, mode fs.FileMode) error {
	if err := os.Chmod(path, mode); err != nil {
		return layer.NewError(l.name, "chmod", layer.KindDownstreamFailure, err)
	}
	return nil
}

func (l *Layer) Destroy() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for fd, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.files, fd)
	}
	return firstErr
}
