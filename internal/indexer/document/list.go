package document

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// EncodePaths packs an ordered path list as varint-length-prefixed strings.
// Empty paths and arbitrary bytes survive the round trip.
func EncodePaths(paths []string) []byte {
	size := 0
	for _, p := range paths {
		size += protowire.SizeBytes(len(p))
	}
	buf := make([]byte, 0, size)
	for _, p := range paths {
		buf = protowire.AppendString(buf, p)
	}
	return buf
}

// DecodePaths reverses EncodePaths.
func DecodePaths(buf []byte) ([]string, error) {
	var paths []string
	for len(buf) > 0 {
		p, n := protowire.ConsumeString(buf)
		if n < 0 {
			return nil, apperrors.Coordinationf(apperrors.ErrMalformedPayload,
				"path %d: %v", len(paths), protowire.ParseError(n))
		}
		paths = append(paths, p)
		buf = buf[n:]
	}
	return paths, nil
}
