// Package tokenizer splits document text into normalized terms. A term is a
// maximal run of ASCII letters and digits, lower-cased; every other byte
// (punctuation, whitespace, control and non-ASCII bytes) is a boundary. The
// output therefore never contains a separator, comma or control byte.
package tokenizer

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lower-cased alphanumeric Tokens in order of
// appearance.
func Tokenize(text []byte) []Token {
	tokens := make([]Token, 0, len(text)/6)
	pos := 0
	Each(text, func(term string) {
		tokens = append(tokens, Token{Term: term, Position: pos})
		pos++
	})
	return tokens
}

// Each calls fn for every term of text in order without building the token
// slice.
func Each(text []byte, fn func(term string)) {
	buf := make([]byte, 0, 32)
	for _, b := range text {
		if c, ok := normalize(b); ok {
			buf = append(buf, c)
			continue
		}
		if len(buf) > 0 {
			fn(string(buf))
			buf = buf[:0]
		}
	}
	if len(buf) > 0 {
		fn(string(buf))
	}
}

// normalize lower-cases b and reports whether it belongs to a term.
func normalize(b byte) (byte, bool) {
	switch {
	case b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return b, true
	case b >= 'A' && b <= 'Z':
		return b + ('a' - 'A'), true
	default:
		return 0, false
	}
}
