package main

import (
	"context"
	"fmt"

	"github.com/rclone/layerfs/config/configfile"
	"github.com/rclone/layerfs/layer"
)

// buildStack turns a parsed configfile.File into a live layer.Layer tree,
// recursively constructing each section's downstreams before the section
// itself, mirroring init's "internal state built from downstream context(s)
// already constructed" ordering.
func buildStack(ctx context.Context, f *configfile.File) (layer.Layer, error) {
	byName := make(map[string]configfile.Section, len(f.Sections))
	for _, s := range f.Sections {
		byName[s.Name] = s
	}
	built := make(map[string]layer.Layer, len(f.Sections))

	var build func(name string, stack map[string]bool) (layer.Layer, error)
	build = func(name string, stack map[string]bool) (layer.Layer, error) {
		if l, ok := built[name]; ok {
			return l, nil
		}
		if stack[name] {
			return nil, fmt.Errorf("layerfs: cycle detected building %q", name)
		}
		sec, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("layerfs: undefined layer %q referenced as downstream", name)
		}
		stack[name] = true

		downstreams := make([]layer.Layer, 0, len(sec.Downstreams))
		for _, d := range sec.Downstreams {
			dl, err := build(d, stack)
			if err != nil {
				return nil, err
			}
			downstreams = append(downstreams, dl)
		}
		delete(stack, name)

		info, err := layer.Find(sec.Type)
		if err != nil {
			return nil, fmt.Errorf("layerfs: section %q: %w", name, err)
		}
		l, err := info.NewLayer(ctx, name, downstreams, sec.Mapper)
		if err != nil {
			return nil, fmt.Errorf("layerfs: section %q: %w", name, err)
		}
		built[name] = l
		return l, nil
	}

	return build(f.Root, map[string]bool{})
}
