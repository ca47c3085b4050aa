package vocab

import (
	"bytes"
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Distributed-Term-Matrix/pkg/errors"
)

// Separator terminates every term in an encoded buffer. The tokenizer never
// emits it, so no escaping is needed.
const Separator byte = 0

// ErrForbiddenByte is returned when a term cannot be encoded: it is empty or
// contains the separator.
var ErrForbiddenByte = errors.New("term is empty or contains the separator byte")

// Size returns the encoded length of terms.
func Size(terms []string) int {
	n := len(terms)
	for _, t := range terms {
		n += len(t)
	}
	return n
}

// Encode packs terms into one buffer, each term followed by Separator.
func Encode(terms []string) ([]byte, error) {
	buf := make([]byte, 0, Size(terms))
	for i, t := range terms {
		if t == "" || bytes.IndexByte([]byte(t), Separator) >= 0 {
			return nil, fmt.Errorf("term %d %q: %w", i, t, ErrForbiddenByte)
		}
		buf = append(buf, t...)
		buf = append(buf, Separator)
	}
	return buf, nil
}

// Decode unpacks a buffer produced by Encode, or by concatenating several
// such buffers. A buffer that does not end in Separator or holds an empty
// term is malformed.
func Decode(buf []byte) ([]string, error) {
	if len(buf) == 0 {
		return []string{}, nil
	}
	if buf[len(buf)-1] != Separator {
		return nil, fmt.Errorf("%w: vocabulary buffer of %d bytes is not separator-terminated",
			apperrors.ErrMalformedPayload, len(buf))
	}
	terms := make([]string, 0, bytes.Count(buf, []byte{Separator}))
	for start := 0; start < len(buf); {
		end := start + bytes.IndexByte(buf[start:], Separator)
		if end == start {
			return nil, fmt.Errorf("%w: empty term at offset %d", apperrors.ErrMalformedPayload, start)
		}
		terms = append(terms, string(buf[start:end]))
		start = end + 1
	}
	return terms, nil
}
