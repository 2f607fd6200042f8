// Package codec is the narrow compression capability the block-sparse
// compression layer consumes, grounded on backend/raid3/compression.go's
// per-block compress/decompress/magic-detection helpers and
// backend/compress/compress.go's codec selection.
package codec

import "fmt"

// Codec is the external collaborator contract for a block codec: compress
// and decompress a single block, report a size bound, detect whether a
// buffer's magic matches this codec's format, and (for crash recovery)
// find how many bytes of a compressed frame begin at a buffer without
// decompressing the whole thing.
type Codec interface {
	Name() string

	// Compress returns the compressed form of src at the given level.
	Compress(src []byte, level int) ([]byte, error)
	// Decompress returns the decompressed form of src.
	Decompress(src []byte) ([]byte, error)
	// Bound returns the maximum compressed size for an input of srcLen
	// bytes, for callers that want to preallocate.
	Bound(srcLen int) int
	// DecodeOriginalSize returns the decompressed length a compressed
	// frame will expand to, without fully decompressing it, when the
	// format records it; ok is false if the format does not support this.
	DecodeOriginalSize(src []byte) (size int, ok bool)
	// MaxHeaderSize is how many leading bytes DetectFormat/FindCompressedFrameLen
	// need to see.
	MaxHeaderSize() int
	// DetectFormat reports whether buf (at least MaxHeaderSize bytes)
	// begins with this codec's magic.
	DetectFormat(buf []byte) bool
	// FindCompressedFrameLen returns the byte length of the compressed
	// frame starting at src, given the expected uncompressed size (used
	// by crash recovery to size sizes[k] without re-compressing).
	FindCompressedFrameLen(src []byte, maxLen int, expectedUncompressed int) (int, error)
}

var registry = map[string]Codec{}

// Register adds a codec implementation under its name.
func Register(c Codec) {
	registry[c.Name()] = c
}

// Find looks up a registered codec by name.
func Find(name string) (Codec, error) {
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("codec: no codec registered as %q", name)
	}
	return c, nil
}

// Names returns every registered codec name.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
