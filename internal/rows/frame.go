package rows

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Frame layout, little-endian:
//
//	[0:4]   magic
//	[4]     format version
//	[5]     encoding
//	[6:8]   reserved, zero
//	[8:12]  record count (dense rows or sparse cells)
//	[12:16] first document ID
//	[16:20] CRC-32 (IEEE) of the body
//	[20:]   body
//
// A dense body is Rows*Width protobuf fixed32 values. A sparse body is one
// (doc, col, count) varint triple per cell.
const (
	FrameMagic   uint32 = 0x544d5258
	FrameVersion byte   = 1
	HeaderSize   int    = 20
)

// DenseFrameSize returns the exact frame length of a dense block.
func DenseFrameSize(rows, width int) int {
	return HeaderSize + rows*width*4
}

// Marshal serializes b into a checksummed frame.
func (b Block) Marshal() ([]byte, error) {
	if b.FirstDoc < 0 || uint64(b.FirstDoc) > math.MaxUint32 || uint64(b.Records()) > math.MaxUint32 {
		return nil, fmt.Errorf("block of %d records at document %d does not fit a frame: %w",
			b.Records(), b.FirstDoc, apperrors.ErrInvalidInput)
	}

	var frame []byte
	switch b.Encoding {
	case EncodingDense:
		frame = make([]byte, HeaderSize, DenseFrameSize(b.Rows, b.Width))
		for _, v := range b.Values {
			frame = protowire.AppendFixed32(frame, v)
		}
	case EncodingSparse:
		frame = make([]byte, HeaderSize, HeaderSize+len(b.Triplets)*4)
		for _, t := range b.Triplets {
			frame = protowire.AppendVarint(frame, uint64(t.Doc))
			frame = protowire.AppendVarint(frame, uint64(t.Col))
			frame = protowire.AppendVarint(frame, uint64(t.Count))
		}
	default:
		return nil, fmt.Errorf("encoding %s: %w", b.Encoding, apperrors.ErrInvalidInput)
	}

	binary.LittleEndian.PutUint32(frame[0:4], FrameMagic)
	frame[4] = FrameVersion
	frame[5] = byte(b.Encoding)
	binary.LittleEndian.PutUint32(frame[8:12], uint32(b.Records()))
	binary.LittleEndian.PutUint32(frame[12:16], uint32(b.FirstDoc))
	binary.LittleEndian.PutUint32(frame[16:20], crc32.ChecksumIEEE(frame[HeaderSize:]))
	return frame, nil
}

// Unmarshal parses and verifies a frame. width is the agreed vocabulary
// size; dense rows must match it and sparse columns must fall below it.
func Unmarshal(frame []byte, width int) (Block, error) {
	if len(frame) < HeaderSize {
		return Block{}, malformed("frame of %d bytes is shorter than its header", len(frame))
	}
	if magic := binary.LittleEndian.Uint32(frame[0:4]); magic != FrameMagic {
		return Block{}, malformed("bad magic bytes %x", magic)
	}
	if v := frame[4]; v != FrameVersion {
		return Block{}, malformed("unsupported frame version %d", v)
	}
	body := frame[HeaderSize:]
	if sum := binary.LittleEndian.Uint32(frame[16:20]); sum != crc32.ChecksumIEEE(body) {
		return Block{}, malformed("body checksum mismatch")
	}

	b := Block{
		Encoding: Encoding(frame[5]),
		FirstDoc: int(binary.LittleEndian.Uint32(frame[12:16])),
		Width:    width,
	}
	count := int(binary.LittleEndian.Uint32(frame[8:12]))

	switch b.Encoding {
	case EncodingDense:
		if len(body) != count*width*4 {
			return Block{}, malformed("dense body is %d bytes, want %d rows of %d columns", len(body), count, width)
		}
		b.Rows = count
		b.Values = make([]uint32, 0, count*width)
		for len(body) > 0 {
			v, n := protowire.ConsumeFixed32(body)
			if n < 0 {
				return Block{}, malformed("dense value: %v", protowire.ParseError(n))
			}
			b.Values = append(b.Values, v)
			body = body[n:]
		}
	case EncodingSparse:
		b.Triplets = make([]Triplet, 0, min(count, len(body)/3))
		for i := 0; i < count; i++ {
			var vals [3]uint64
			for j := range vals {
				v, n := protowire.ConsumeVarint(body)
				if n < 0 {
					return Block{}, malformed("cell %d: %v", i, protowire.ParseError(n))
				}
				vals[j] = v
				body = body[n:]
			}
			if vals[1] >= uint64(width) {
				return Block{}, malformed("cell %d: column %d outside vocabulary of %d", i, vals[1], width)
			}
			if vals[0] > math.MaxInt32 || vals[2] == 0 || vals[2] > math.MaxUint32 {
				return Block{}, malformed("cell %d: invalid document %d or count %d", i, vals[0], vals[2])
			}
			b.Triplets = append(b.Triplets, Triplet{Doc: int(vals[0]), Col: int(vals[1]), Count: uint32(vals[2])})
		}
		if len(body) != 0 {
			return Block{}, malformed("%d trailing bytes after %d cells", len(body), count)
		}
	default:
		return Block{}, malformed("unknown encoding %d", frame[5])
	}
	return b, nil
}

func malformed(format string, args ...any) error {
	return apperrors.Coordinationf(apperrors.ErrMalformedPayload, format, args...)
}
