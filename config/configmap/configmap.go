// Package configmap provides the narrow key/value accessor layer init
// receives its configuration through, mirrored from rclone's fs/config/configmap.
package configmap

// Getter provides name-to-value lookups from a config source.
type Getter interface {
	Get(key string) (value string, ok bool)
}

// Setter allows a config source to be written back to (configfile.Load
// fills each section's Mapper through it).
type Setter interface {
	Set(key, value string)
}

// Mapper is the full read/write capability a layer's init is handed.
type Mapper interface {
	Getter
	Setter
}

// Simple is a map-backed Mapper, the default used when constructing a layer
// stack programmatically rather than from a config file.
type Simple map[string]string

var _ Mapper = (*Simple)(nil)

func New() Simple { return Simple{} }

func (s Simple) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok
}

func (s Simple) Set(key, value string) {
	s[key] = value
}

// Override layers a higher-priority Getter (e.g. CLI flags) on top of a
// base Mapper, mirroring configmap.Map's chained-getters approach.
type Override struct {
	Base     Mapper
	Priority Getter
}

var _ Mapper = (*Override)(nil)

func (o *Override) Get(key string) (string, bool) {
	if o.Priority != nil {
		if v, ok := o.Priority.Get(key); ok {
			return v, true
		}
	}
	return o.Base.Get(key)
}

func (o *Override) Set(key, value string) {
	o.Base.Set(key, value)
}
