package demux

import (
	"io/fs"

	"github.com/rclone/layerfs/dispatch"
	"github.com/rclone/layerfs/layer"
)

// firstEnforced applies the shared enforced-result-selection
// rule over a set of per-downstream (n, err) outcomes: fail fast on the
// first enforced downstream with a negative/err result, else return the
// first enforced downstream's result. Non-enforced failures are recorded
// via noteDegraded but never fail the call.
func (l *Layer) firstEnforced(results []dispatch.Result) (int, error) {
	for i, r := range results {
		if l.opts[i].enforced && r.Err != nil {
			return 0, r.Err
		}
		if !l.opts[i].enforced && r.Err != nil {
			l.noteDegraded(i, r.Err)
		}
	}
	for i, r := range results {
		if l.opts[i].enforced {
			return r.N, nil
		}
	}
	return 0, layer.NewError(l.name, "dispatch", layer.KindInvariantViolation, layer.ErrInvariantFailure)
}

// Open fans out in parallel; the master fd is downstream 0's fd (downstream
// 0 is implicitly enforced since it is authoritative for the master fd),
// and every downstream's own fd is recorded in layer_fds[master_fd].
func (l *Layer) Open(rc *layer.RequestContext, path string, flags int, mode fs.FileMode) (layer.FD, error) {
	n := len(l.downstreams)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		fd, err := l.downstreams[i].Open(rc, path, flags, mode)
		return dispatch.Result{N: int(fd), Err: err}
	})

	if results[0].Err != nil {
		for i := 1; i < n; i++ {
			if results[i].Err == nil {
				_ = l.downstreams[i].Close(rc, layer.FD(results[i].N))
			}
		}
		return layer.InvalidFD, results[0].Err
	}
	for i := 1; i < n; i++ {
		if l.opts[i].enforced && results[i].Err != nil {
			_ = l.downstreams[0].Close(rc, layer.FD(results[0].N))
			return layer.InvalidFD, results[i].Err
		}
		if results[i].Err != nil {
			l.noteDegraded(i, results[i].Err)
		}
	}

	downFDs := make([]layer.FD, n)
	for i := range downFDs {
		if results[i].Err == nil {
			downFDs[i] = layer.FD(results[i].N)
		} else {
			downFDs[i] = layer.InvalidFD
		}
	}

	master := layer.FD(results[0].N)
	l.mu.Lock()
	l.fdTable[master] = downFDs
	l.mu.Unlock()
	return master, nil
}

// Close fans out, joining every downstream's close, selecting the enforced
// result per the shared rule.
func (l *Layer) Close(rc *layer.RequestContext, fd layer.FD) error {
	downFDs, ok := l.downstreamFDs(fd)
	if !ok {
		return layer.NewError(l.name, "close", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	l.mu.Lock()
	delete(l.fdTable, fd)
	l.mu.Unlock()

	n := len(l.downstreams)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		if downFDs[i] == layer.InvalidFD {
			return dispatch.Result{Err: nil}
		}
		return dispatch.Result{Err: l.downstreams[i].Close(rc, downFDs[i])}
	})
	_, err := l.firstEnforced(results)
	return err
}

// Pread fans out with per-worker buffers; after join, the chosen enforced
// downstream's buffer is copied into the caller's buffer. Downstreams
// marked passthrough-read are simulated as a no-op success reporting
// len(buf).
func (l *Layer) Pread(rc *layer.RequestContext, fd layer.FD, buf []byte, off int64) (int, error) {
	downFDs, ok := l.downstreamFDs(fd)
	if !ok {
		return 0, layer.NewError(l.name, "pread", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	if buf == nil {
		return 0, layer.NewError(l.name, "pread", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}

	n := len(l.downstreams)
	results := dispatch.RunRead(n, func(i int) dispatch.ReadResult {
		if l.opts[i].passthroughRead {
			return dispatch.ReadResult{N: len(buf)}
		}
		b := make([]byte, len(buf))
		nread, err := l.downstreams[i].Pread(rc, downFDs[i], b, off)
		return dispatch.ReadResult{Buf: b, N: nread, Err: err}
	})

	for i, r := range results {
		if l.opts[i].enforced && r.Err != nil {
			return 0, r.Err
		}
		if !l.opts[i].enforced && r.Err != nil {
			l.noteDegraded(i, r.Err)
		}
	}
	for i, r := range results {
		if l.opts[i].enforced {
			if r.Buf != nil {
				copy(buf, r.Buf[:r.N])
			}
			return r.N, nil
		}
	}
	return 0, layer.NewError(l.name, "pread", layer.KindInvariantViolation, layer.ErrInvariantFailure)
}

// Pwrite fans out; non-enforced failures are logged (recorded via
// noteDegraded), not fatal, since writes are best-effort against those
// downstreams. Downstreams marked passthrough-write are simulated as a
// no-op success reporting len(buf).
func (l *Layer) Pwrite(rc *layer.RequestContext, fd layer.FD, buf []byte, off int64) (int, error) {
	downFDs, ok := l.downstreamFDs(fd)
	if !ok {
		return 0, layer.NewError(l.name, "pwrite", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}

	n := len(l.downstreams)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		if l.opts[i].passthroughWrite {
			return dispatch.Result{N: len(buf)}
		}
		nwrit, err := l.downstreams[i].Pwrite(rc, downFDs[i], buf, off)
		return dispatch.Result{N: nwrit, Err: err}
	})
	return l.firstEnforced(results)
}

func (l *Layer) Ftruncate(rc *layer.RequestContext, fd layer.FD, size int64) error {
	downFDs, ok := l.downstreamFDs(fd)
	if !ok {
		return layer.NewError(l.name, "ftruncate", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	n := len(l.downstreams)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		return dispatch.Result{Err: l.downstreams[i].Ftruncate(rc, downFDs[i], size)}
	})
	_, err := l.firstEnforced(results)
	return err
}

func (l *Layer) Truncate(rc *layer.RequestContext, path string, size int64) error {
	n := len(l.downstreams)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		return dispatch.Result{Err: l.downstreams[i].Truncate(rc, path, size)}
	})
	_, err := l.firstEnforced(results)
	return err
}

func (l *Layer) Fstat(rc *layer.RequestContext, fd layer.FD) (layer.Stat, error) {
	downFDs, ok := l.downstreamFDs(fd)
	if !ok {
		return layer.Stat{}, layer.NewError(l.name, "fstat", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	n := len(l.downstreams)
	stats := make([]layer.Stat, n)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		st, err := l.downstreams[i].Fstat(rc, downFDs[i])
		stats[i] = st
		return dispatch.Result{Err: err}
	})
	for i, r := range results {
		if l.opts[i].enforced && r.Err != nil {
			return layer.Stat{}, r.Err
		}
		if !l.opts[i].enforced && r.Err != nil {
			l.noteDegraded(i, r.Err)
		}
	}
	for i := range results {
		if l.opts[i].enforced {
			return stats[i], nil
		}
	}
	return layer.Stat{}, layer.NewError(l.name, "fstat", layer.KindInvariantViolation, layer.ErrInvariantFailure)
}

func (l *Layer) Lstat(rc *layer.RequestContext, path string) (layer.Stat, error) {
	n := len(l.downstreams)
	stats := make([]layer.Stat, n)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		st, err := l.downstreams[i].Lstat(rc, path)
		stats[i] = st
		return dispatch.Result{Err: err}
	})
	for i, r := range results {
		if l.opts[i].enforced && r.Err != nil {
			return layer.Stat{}, r.Err
		}
		if !l.opts[i].enforced && r.Err != nil {
			l.noteDegraded(i, r.Err)
		}
	}
	for i := range results {
		if l.opts[i].enforced {
			return stats[i], nil
		}
	}
	return layer.Stat{}, layer.NewError(l.name, "lstat", layer.KindInvariantViolation, layer.ErrInvariantFailure)
}

func (l *Layer) Unlink(rc *layer.RequestContext, path string) error {
	n := len(l.downstreams)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		return dispatch.Result{Err: l.downstreams[i].Unlink(rc, path)}
	})
	_, err := l.firstEnforced(results)
	return err
}

func (l *Layer) Fsync(rc *layer.RequestContext, fd layer.FD, dataOnly bool) error {
	downFDs, ok := l.downstreamFDs(fd)
	if !ok {
		return layer.NewError(l.name, "fsync", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	n := len(l.downstreams)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		return dispatch.Result{Err: l.downstreams[i].Fsync(rc, downFDs[i], dataOnly)}
	})
	_, err := l.firstEnforced(results)
	return err
}

func (l *Layer) Fallocate(rc *layer.RequestContext, fd layer.FD, mode layer.FallocateMode, off, size int64) error {
	downFDs, ok := l.downstreamFDs(fd)
	if !ok {
		return layer.NewError(l.name, "fallocate", layer.KindInvalidArgument, layer.ErrInvalidArgument)
	}
	n := len(l.downstreams)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		return dispatch.Result{Err: l.downstreams[i].Fallocate(rc, downFDs[i], mode, off, size)}
	})
	_, err := l.firstEnforced(results)
	return err
}

// Readdir, Rename, Chmod are path-addressed operations only enforced
// downstream 0 (or the configured enforced set) needs to agree on; fan out
// the same way as the other path ops.
func (l *Layer) Readdir(rc *layer.RequestContext, path string) ([]layer.DirEntry, error) {
	n := len(l.downstreams)
	entries := make([][]layer.DirEntry, n)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		e, err := l.downstreams[i].Readdir(rc, path)
		entries[i] = e
		return dispatch.Result{Err: err}
	})
	for i, r := range results {
		if l.opts[i].enforced && r.Err != nil {
			return nil, r.Err
		}
		if !l.opts[i].enforced && r.Err != nil {
			l.noteDegraded(i, r.Err)
		}
	}
	for i := range results {
		if l.opts[i].enforced {
			return entries[i], nil
		}
	}
	return nil, layer.NewError(l.name, "readdir", layer.KindInvariantViolation, layer.ErrInvariantFailure)
}

func (l *Layer) Rename(rc *layer.RequestContext, oldPath, newPath string) error {
	n := len(l.downstreams)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		return dispatch.Result{Err: l.downstreams[i].Rename(rc, oldPath, newPath)}
	})
	_, err := l.firstEnforced(results)
	return err
}

func (l *Layer) Chmod(rc *layer.RequestContext, path string, mode fs.FileMode) error {
	n := len(l.downstreams)
	results := dispatch.Run(n, func(i int) dispatch.Result {
		return dispatch.Result{Err: l.downstreams[i].Chmod(rc, path, mode)}
	})
	_, err := l.firstEnforced(results)
	return err
}
