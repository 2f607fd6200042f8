package layer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rclone/layerfs/config/configmap"
)

// Option describes one recognized configuration key for a registered layer
// type.
type Option struct {
	Name    string
	Default any
	Help    string
}

// NewLayerFunc constructs a layer instance from its resolved downstreams and
// configuration. name is the instance's configured name (the config section
// name), not the registered type name.
type NewLayerFunc func(ctx context.Context, name string, downstreams []Layer, m configmap.Mapper) (Layer, error)

// RegInfo describes one layer type available to configuration-driven stack
// construction, mirrored from fs.RegInfo.
type RegInfo struct {
	Name        string
	Description string
	NewLayer    NewLayerFunc
	Options     []Option
}

var (
	registryMu sync.Mutex
	registry   = map[string]*RegInfo{}
)

// Register adds a layer type to the registry. Panics on duplicate
// registration: a second layer type claiming the same name is a build-time
// wiring mistake, not a runtime condition to recover from.
func Register(info *RegInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[info.Name]; exists {
		panic(fmt.Sprintf("layer: duplicate registration for %q", info.Name))
	}
	registry[info.Name] = info
}

// Find looks up a registered layer type by name.
func Find(name string) (*RegInfo, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	info, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: no layer type registered as %q", ErrNotFound, name)
	}
	return info, nil
}

// Registered returns the names of every registered layer type, sorted.
func Registered() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
