package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

func init() {
	Register(&zstdCodec{})
}

// zstdMagic is the little-endian zstd frame magic number (RFC 8878 §3.1.1).
var zstdMagic = [4]byte{0x28, 0xB5, 0x2F, 0xFD}

type zstdCodec struct{}

func (z *zstdCodec) Name() string { return "zstd" }

func (z *zstdCodec) Compress(src []byte, level int) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstdLevel(level)))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(src, nil), nil
}

func (z *zstdCodec) Decompress(src []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(src, nil)
}

func (z *zstdCodec) Bound(srcLen int) int {
	// zstd frames can expand slightly on incompressible input; the block
	// compression layer always falls back to raw storage when this
	// happens, so a generous bound (src + 64-byte frame overhead) is
	// enough for a caller that wants to preallocate.
	return srcLen + 64
}

func (z *zstdCodec) MaxHeaderSize() int { return 18 }

func (z *zstdCodec) DetectFormat(buf []byte) bool {
	if len(buf) < 4 {
		return false
	}
	return buf[0] == zstdMagic[0] && buf[1] == zstdMagic[1] && buf[2] == zstdMagic[2] && buf[3] == zstdMagic[3]
}

func (z *zstdCodec) DecodeOriginalSize(src []byte) (int, bool) {
	f, err := parseZstdFrameHeader(src)
	if err != nil || !f.hasContentSize {
		return 0, false
	}
	return int(f.contentSize), true
}

func (z *zstdCodec) FindCompressedFrameLen(src []byte, maxLen int, expectedUncompressed int) (int, error) {
	if maxLen > 0 && maxLen < len(src) {
		src = src[:maxLen]
	}
	f, err := parseZstdFrameHeader(src)
	if err != nil {
		return 0, err
	}
	pos := f.headerLen
	for {
		if pos+3 > len(src) {
			return 0, fmt.Errorf("codec: zstd: truncated block header at %d", pos)
		}
		h := uint32(src[pos]) | uint32(src[pos+1])<<8 | uint32(src[pos+2])<<16
		last := h&1 != 0
		blockType := (h >> 1) & 0x3
		blockSize := int(h >> 3)
		pos += 3
		switch blockType {
		case 0: // raw
			pos += blockSize
		case 1: // RLE
			pos++
		case 2: // compressed
			pos += blockSize
		default:
			return 0, fmt.Errorf("codec: zstd: reserved block type at %d", pos)
		}
		if pos > len(src) {
			return 0, fmt.Errorf("codec: zstd: block overruns buffer")
		}
		if last {
			break
		}
	}
	if f.hasChecksum {
		pos += 4
	}
	return pos, nil
}

type zstdFrameHeader struct {
	headerLen      int
	hasContentSize bool
	contentSize    uint64
	hasChecksum    bool
}

func parseZstdFrameHeader(src []byte) (zstdFrameHeader, error) {
	var f zstdFrameHeader
	if len(src) < 5 {
		return f, fmt.Errorf("codec: zstd: buffer too short for frame header")
	}
	if !(&zstdCodec{}).DetectFormat(src) {
		return f, fmt.Errorf("codec: zstd: bad magic")
	}
	desc := src[4]
	fcsFlag := desc >> 6
	singleSegment := desc&(1<<5) != 0
	checksumFlag := desc&(1<<2) != 0
	dictIDFlag := desc & 0x3

	pos := 5
	if !singleSegment {
		pos++ // window descriptor
	}
	var dictIDLen int
	switch dictIDFlag {
	case 0:
		dictIDLen = 0
	case 1:
		dictIDLen = 1
	case 2:
		dictIDLen = 2
	case 3:
		dictIDLen = 4
	}
	pos += dictIDLen

	var fcsLen int
	switch fcsFlag {
	case 0:
		if singleSegment {
			fcsLen = 1
		} else {
			fcsLen = 0
		}
	case 1:
		fcsLen = 2
	case 2:
		fcsLen = 4
	case 3:
		fcsLen = 8
	}
	if fcsLen > 0 {
		if pos+fcsLen > len(src) {
			return f, fmt.Errorf("codec: zstd: truncated frame content size field")
		}
		switch fcsLen {
		case 1:
			f.contentSize = uint64(src[pos])
		case 2:
			f.contentSize = uint64(binary.LittleEndian.Uint16(src[pos:])) + 256
		case 4:
			f.contentSize = uint64(binary.LittleEndian.Uint32(src[pos:]))
		case 8:
			f.contentSize = binary.LittleEndian.Uint64(src[pos:])
		}
		f.hasContentSize = true
	}
	pos += fcsLen
	f.headerLen = pos
	f.hasChecksum = checksumFlag
	return f, nil
}

func zstdLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= 0:
		return zstd.SpeedDefault
	case level == 1:
		return zstd.SpeedFastest
	case level >= 3:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedBetterCompression
	}
}
