package layer

// Features records which optional operations a layer (and, transitively,
// everything below it) can service: Fill seeds the capabilities, Mask
// narrows them to what a downstream supports, and WrapsFs records the
// wrapping relation. No layer in this module builds or consults a Features
// value; the demultiplexer's init-time validation does not use it.
type Features struct {
	CanFallocate bool
	CanReaddir   bool
	CanRename    bool
	CanChmod     bool
	CanFsync     bool

	// Wrapper is set by WrapsFs to the layer that wraps Wrapped.
	Wrapper Layer
	Wrapped Layer
}

// Fill sets every boolean capability field to true; l is not inspected,
// since layerfs has no optional-operation marker interfaces (the vtable is
// total). Callers needing a stricter description should construct Features
// by hand, the same escape hatch fs.Features leaves for backends with
// partial support.
func (f *Features) Fill(l Layer) *Features {
	f.CanFallocate = true
	f.CanReaddir = true
	f.CanRename = true
	f.CanChmod = true
	f.CanFsync = true
	return f
}

// Mask clears any capability that downstream does not support, so a wrapper
// never claims more than its weakest link.
func (f *Features) Mask(downstream *Features) *Features {
	if downstream == nil {
		return f
	}
	f.CanFallocate = f.CanFallocate && downstream.CanFallocate
	f.CanReaddir = f.CanReaddir && downstream.CanReaddir
	f.CanRename = f.CanRename && downstream.CanRename
	f.CanChmod = f.CanChmod && downstream.CanChmod
	f.CanFsync = f.CanFsync && downstream.CanFsync
	return f
}

// WrapsFs records that wrapper wraps wrapped, mirroring fs.Features.WrapsFs.
func (f *Features) WrapsFs(wrapper, wrapped Layer) *Features {
	f.Wrapper = wrapper
	f.Wrapped = wrapped
	return f
}
