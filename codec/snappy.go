package codec

import (
	"github.com/golang/snappy"
)

func init() {
	Register(&snappyCodec{})
}

// snappyCodec wraps raw (unframed) snappy blocks, mirrored from
// backend/raid3/compression.go's compressBlock/decompressBlock snappy path.
type snappyCodec struct{}

func (s *snappyCodec) Name() string { return "snappy" }

func (s *snappyCodec) Compress(src []byte, _ int) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (s *snappyCodec) Decompress(src []byte) ([]byte, error) {
	return snappy.Decode(nil, src)
}

func (s *snappyCodec) Bound(srcLen int) int {
	return snappy.MaxEncodedLen(srcLen)
}

func (s *snappyCodec) MaxHeaderSize() int { return 4 }

// DetectFormat always reports no match: raw snappy blocks (as opposed to
// the framed stream format) carry no fixed magic number, only a
// leading varint of the decoded length, so a byte-pattern match would be
// unreliable. Crash recovery for a file configured with algorithm=snappy
// therefore treats every non-empty block as uncompressed; zstd should be
// preferred when crash-recoverable rebuild matters (see DESIGN.md).
func (s *snappyCodec) DetectFormat(buf []byte) bool {
	return false
}

func (s *snappyCodec) DecodeOriginalSize(src []byte) (int, bool) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *snappyCodec) FindCompressedFrameLen(src []byte, maxLen int, expectedUncompressed int) (int, error) {
	if maxLen > 0 && maxLen < len(src) {
		src = src[:maxLen]
	}
	// Without a self-delimiting frame format the only reliable way to
	// learn the compressed length is to decode and compare against the
	// expected uncompressed size.
	out, err := snappy.Decode(nil, src)
	if err != nil {
		return 0, err
	}
	if len(out) != expectedUncompressed {
		return 0, errSnappyLengthMismatch
	}
	return len(src), nil
}

var errSnappyLengthMismatch = &frameLenError{"codec: snappy: decoded length does not match expected uncompressed size"}

type frameLenError struct{ msg string }

func (e *frameLenError) Error() string { return e.msg }
