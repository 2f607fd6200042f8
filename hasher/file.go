package hasher

import (
	"encoding/hex"
	"io"
	"os"
)

// HashFileHex hashes the file at path and returns the lower-case hex
// digest, mirroring the hash_file_hex operation.
func HashFileHex(h Hasher, path string) (string, error) {
	sum, err := hashFile(h, path)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// HashFileBinary hashes the file at path and returns the raw digest bytes.
func HashFileBinary(h Hasher, path string) ([]byte, error) {
	return hashFile(h, path)
}

func hashFile(h Hasher, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sum := h.New()
	if _, err := io.Copy(sum, f); err != nil {
		return nil, err
	}
	return sum.Sum(nil), nil
}
