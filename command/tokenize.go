package command

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Tokenize splits s into argument tokens.
// Tokens are separated by whitespace. A token that begins with a double
// quote or a backtick extends to the next matching quote character, which
// may include whitespace; the quotes are not part of the token. A quote with
// no matching partner is ordinary text.
func Tokenize(s string) []string {
	var r []string
	for {
		tok, rest, ok := next(s)
		if !ok {
			return r
		}
		r = append(r, tok)
		s = rest
	}
}

// Cut slices s around its first token, following the same rules as
// Tokenize. The remainder is trimmed of surrounding whitespace.
func Cut(s string) (tok, rest string) {
	tok, rest, _ = next(s)
	return tok, strings.TrimSpace(rest)
}

// next returns the first token of s and the text following it.
// The result is false if s has no tokens.
func next(s string) (tok, rest string, ok bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if s == "" {
		return "", "", false
	}
	if q := s[0]; q == '"' || q == '`' {
		if k := strings.IndexByte(s[1:], q); k >= 0 {
			return s[1 : 1+k], s[2+k:], true
		}
	}
	k := strings.IndexFunc(s, unicode.IsSpace)
	if k < 0 {
		return s, "", true
	}
	return s[:k], s[k:], true
}

// words iterates over the whitespace-separated words of s, yielding the
// byte offsets of the start and end of each.
func words(s string) iter.Seq2[int, int] {
	return func(yield func(start, end int) bool) {
		i := 0
		for i < len(s) {
			c, n := utf8.DecodeRuneInString(s[i:])
			if unicode.IsSpace(c) {
				i += n
				continue
			}
			start := i
			for i < len(s) {
				c, n := utf8.DecodeRuneInString(s[i:])
				if unicode.IsSpace(c) {
					break
				}
				i += n
			}
			if !yield(start, i) {
				return
			}
		}
	}
}
