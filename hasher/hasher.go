// Package hasher is the narrow hash capability record, used by higher
// layers (e.g. a future integrity-check layer) that need to name a hash
// algorithm by string without linking every algorithm directly.
package hasher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/jzelinskie/whirlpool"
)

// Hasher computes a hash over an in-memory buffer or a file, mirrored from
// the hash_buffer_hex/binary, hash_file_hex/binary,
// get_hash_size, get_hex_size contract.
type Hasher interface {
	Name() string
	New() hash.Hash
	Size() int
	HexSize() int
}

type simpleHasher struct {
	name    string
	newFunc func() hash.Hash
	size    int
}

func (s *simpleHasher) Name() string    { return s.name }
func (s *simpleHasher) New() hash.Hash  { return s.newFunc() }
func (s *simpleHasher) Size() int       { return s.size }
func (s *simpleHasher) HexSize() int    { return s.size * 2 }

var registry = map[string]Hasher{}

func register(h Hasher) { registry[h.Name()] = h }

func init() {
	register(&simpleHasher{name: "md5", newFunc: func() hash.Hash { return md5.New() }, size: md5.Size})
	register(&simpleHasher{name: "sha256", newFunc: func() hash.Hash { return sha256.New() }, size: sha256.Size})
	register(&simpleHasher{name: "whirlpool", newFunc: func() hash.Hash { return whirlpool.New() }, size: whirlpool.Size})
}

// Find looks up a registered hasher by name.
func Find(name string) (Hasher, error) {
	h, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("hasher: no hash algorithm registered as %q", name)
	}
	return h, nil
}

// HashBufferHex hashes buf and returns the lower-case hex digest.
func HashBufferHex(h Hasher, buf []byte) string {
	sum := h.New()
	sum.Write(buf)
	return hex.EncodeToString(sum.Sum(nil))
}

// HashBufferBinary hashes buf and returns the raw digest bytes.
func HashBufferBinary(h Hasher, buf []byte) []byte {
	sum := h.New()
	sum.Write(buf)
	return sum.Sum(nil)
}
