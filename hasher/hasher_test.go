package hasher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBufferHexKnownLength(t *testing.T) {
	for _, name := range []string{"md5", "sha256", "whirlpool"} {
		h, err := Find(name)
		require.NoError(t, err)
		digest := HashBufferHex(h, []byte("layerfs"))
		assert.Len(t, digest, h.HexSize())
	}
}

func TestHashFileMatchesBuffer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	content := []byte("some file content for hashing")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	h, err := Find("sha256")
	require.NoError(t, err)
	want := HashBufferHex(h, content)
	got, err := HashFileHex(h, path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindUnknownHasher(t *testing.T) {
	_, err := Find("blake3")
	assert.Error(t, err)
}
