// Package demux implements the demultiplexer layer: fan one operation out
// to N ordered downstream layers, with per-downstream enforced/passthrough
// semantics and a per-master-fd → per-downstream-fd mapping.
// Grounded on backend/raid3's 3-way concurrent Put/Mkdir/Rmdir/Purge fan-out
// and backend/union's multithread helper for Mkdir/Rmdir/Purge, generalized
// from "exactly 3, all enforced" to "N downstreams, a configurable enforced/
// passthrough subset per op direction" and adapted from whole-object PUT/
// directory operations to byte-addressed pread/pwrite/fstat/etc.
package demux

import (
	"context"
	"fmt"
	"sync"

	"github.com/rclone/layerfs/config/configmap"
	"github.com/rclone/layerfs/config/configstruct"
	"github.com/rclone/layerfs/layer"
	"github.com/rclone/layerfs/logging"
)

// Options is the demultiplexer's config schema. Downstream
// names are resolved to layer.Layer instances by the caller (the config
// loader / layer builder) before NewLayer is invoked; this package only
// consumes the resulting []layer.Layer plus the textual enforced/
// passthrough lists, matched against each downstream's Name().
type Options struct {
	EnforcedLayers     string `config:"enforced_layers" default:""`
	PassthroughReads   string `config:"passthrough_reads" default:""`
	PassthroughWrites  string `config:"passthrough_writes" default:""`
}

func init() {
	layer.Register(&layer.RegInfo{
		Name:        "demultiplexer",
		Description: "Fan-out dispatch across N downstream layers with enforcement/passthrough",
		Options: []layer.Option{
			{Name: "enforced_layers", Default: "", Help: "comma-separated layer names required to succeed (default: downstream 0)"},
			{Name: "passthrough_reads", Default: "", Help: "comma-separated layer names whose pread is a no-op"},
			{Name: "passthrough_writes", Default: "", Help: "comma-separated layer names whose pwrite is a no-op"},
		},
		NewLayer: func(_ context.Context, name string, downstreams []layer.Layer, m configmap.Mapper) (layer.Layer, error) {
			if len(downstreams) < 1 {
				return nil, layer.NewError(name, "init", layer.KindConfigInvalid, layer.ErrConfigInvalid)
			}
			var opt Options
			if err := configstruct.Set(m, &opt); err != nil {
				return nil, layer.NewError(name, "init", layer.KindConfigInvalid, err)
			}
			return New(name, downstreams, opt)
		},
	})
}

// downstreamOpts is the resolved per-downstream configuration the
// "options[i].enforced / passthrough_read / passthrough_write" describes.
type downstreamOpts struct {
	enforced          bool
	passthroughRead   bool
	passthroughWrite  bool
}

// Layer is the demultiplexer.
type Layer struct {
	name        string
	downstreams []layer.Layer
	opts        []downstreamOpts

	mu      sync.Mutex
	fdTable map[layer.FD][]layer.FD // master fd -> per-downstream fd

	// degraded tracks the last observed non-enforced-downstream failure
	// per index, for Status() reporting in the raid3 idiom: a downstream
	// that is passthrough or non-enforced can fail without failing the
	// call, but that failure is worth surfacing as a health signal.
	degradedMu sync.Mutex
	degraded   []error
}

var _ layer.Layer = (*Layer)(nil)

// New validates opt against downstreams per the demultiplexer's init-time rules
// and builds a demultiplexer layer.
func New(name string, downstreams []layer.Layer, opt Options) (*Layer, error) {
	opts := make([]downstreamOpts, len(downstreams))

	enforcedSet := splitSet(opt.EnforcedLayers)
	readSet := splitSet(opt.PassthroughReads)
	writeSet := splitSet(opt.PassthroughWrites)

	anyEnforced := false
	for i, d := range downstreams {
		o := downstreamOpts{}
		if enforcedSet[d.Name()] {
			o.enforced = true
		}
		if readSet[d.Name()] {
			o.passthroughRead = true
		}
		if writeSet[d.Name()] {
			o.passthroughWrite = true
		}
		opts[i] = o
		if o.enforced {
			anyEnforced = true
		}
	}
	if !anyEnforced {
		opts[0].enforced = true
	}

	canRead, canWrite := false, false
	for i, o := range opts {
		if o.enforced && o.passthroughRead {
			return nil, fmt.Errorf("demux: downstream %q is both enforced and passthrough-read", downstreams[i].Name())
		}
		if o.enforced && o.passthroughWrite {
			return nil, fmt.Errorf("demux: downstream %q is both enforced and passthrough-write", downstreams[i].Name())
		}
		if o.passthroughRead && o.passthroughWrite {
			return nil, fmt.Errorf("demux: downstream %q is both passthrough-read and passthrough-write", downstreams[i].Name())
		}
		if !o.passthroughRead {
			canRead = true
		}
		if !o.passthroughWrite {
			canWrite = true
		}
	}
	if !canRead {
		return nil, fmt.Errorf("demux: every downstream is passthrough-read; at least one must service reads")
	}
	if !canWrite {
		return nil, fmt.Errorf("demux: every downstream is passthrough-write; at least one must service writes")
	}

	return &Layer{
		name:        name,
		downstreams: downstreams,
		opts:        opts,
		fdTable:     make(map[layer.FD][]layer.FD),
		degraded:    make([]error, len(downstreams)),
	}, nil
}

func splitSet(s string) map[string]bool {
	out := make(map[string]bool)
	cur := ""
	flush := func() {
		if cur != "" {
			out[cur] = true
		}
		cur = ""
	}
	for _, r := range s {
		if r == ',' || r == ' ' {
			flush()
			continue
		}
		cur += string(r)
	}
	flush()
	return out
}

func (l *Layer) Name() string              { return l.name }
func (l *Layer) Downstream() []layer.Layer { return l.downstreams }

func (l *Layer) Destroy() error {
	var firstErr error
	for _, d := range l.downstreams {
		if err := d.Destroy(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Layer) noteDegraded(i int, err error) {
	l.degradedMu.Lock()
	l.degraded[i] = err
	l.degradedMu.Unlock()
	logging.Errorf(nil, "demux: downstream %d failed: %v", i, err)
}

// DownstreamStatus mirrors raid3's degraded-mode reporting: one entry per
// downstream. LastErr is the most recent failure recorded for a
// non-enforced downstream, or nil if none has been recorded; a later
// successful call does not clear it.
type DownstreamStatus struct {
	Name     string
	Enforced bool
	LastErr  error
}

// Status reports the health of every downstream, raid3-style.
func (l *Layer) Status() []DownstreamStatus {
	l.degradedMu.Lock()
	defer l.degradedMu.Unlock()
	out := make([]DownstreamStatus, len(l.downstreams))
	for i, d := range l.downstreams {
		out[i] = DownstreamStatus{Name: d.Name(), Enforced: l.opts[i].enforced, LastErr: l.degraded[i]}
	}
	return out
}

func (l *Layer) downstreamFDs(fd layer.FD) ([]layer.FD, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fds, ok := l.fdTable[fd]
	return fds, ok
}
