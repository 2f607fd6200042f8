// Package configfile loads a declarative INI-format stack description from
// disk and hands each section to the layer registry as a configmap.Mapper.
// This is the "configuration loading from a declarative text format"
// external collaborator that sits out of core scope: layerfs only
// consumes the Mapper a load produces.
package configfile

import (
	"fmt"

	"github.com/Unknwon/goconfig"

	"github.com/rclone/layerfs/config/configmap"
)

// Section is one `[name]` block: its own key/value Mapper plus the two keys
// every layer stack description needs to wire composition — the layer's
// registered type, and the name(s) of its downstream section(s).
type Section struct {
	Name        string
	Type        string
	Downstreams []string
	Mapper      configmap.Mapper
}

// File is a parsed stack description: an ordered list of sections and the
// name of the root section (the one nothing else names as a downstream, or
// the explicit `[layerfs] root = ...` pointer when present).
type File struct {
	Sections []Section
	Root      string
}

// Load parses path as an INI file and returns the declared sections.
func Load(path string) (*File, error) {
	cfg, err := goconfig.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("configfile: load %s: %w", path, err)
	}

	f := &File{}
	for _, name := range cfg.GetSectionList() {
		if name == "layerfs" {
			root, _ := cfg.GetValue(name, "root")
			f.Root = root
			continue
		}
		kv, err := cfg.GetSection(name)
		if err != nil {
			return nil, fmt.Errorf("configfile: section %s: %w", name, err)
		}
		m := configmap.New()
		for k, v := range kv {
			m.Set(k, v)
		}
		sec := Section{Name: name, Mapper: m}
		sec.Type, _ = m.Get("type")
		if next, ok := m.Get("next"); ok && next != "" {
			sec.Downstreams = []string{next}
		}
		if upstreams, ok := m.Get("upstreams"); ok && upstreams != "" {
			sec.Downstreams = splitList(upstreams)
		}
		if layers, ok := m.Get("layers"); ok && layers != "" {
			sec.Downstreams = splitList(layers)
		}
		f.Sections = append(f.Sections, sec)
	}
	if f.Root == "" && len(f.Sections) > 0 {
		f.Root = inferRoot(f.Sections)
	}
	return f, nil
}

// inferRoot picks the one section nothing else names as a downstream,
// matching the single-root-layer invariant the application holds.
func inferRoot(sections []Section) string {
	named := map[string]bool{}
	for _, s := range sections {
		for _, d := range s.Downstreams {
			named[d] = true
		}
	}
	for _, s := range sections {
		if !named[s.Name] {
			return s.Name
		}
	}
	return sections[0].Name
}

func splitList(raw string) []string {
	var out []string
	cur := ""
	for _, r := range raw {
		switch r {
		case ',', ' ':
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
		default:
			cur += string(r)
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
