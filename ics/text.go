package ics

import (
	"fmt"
	"strings"
)

// foldLimit is the RFC 5545 maximum content line length in octets,
// excluding the CRLF terminator.
const foldLimit = 75

// escapeText escapes a TEXT value per RFC 5545 3.3.11: backslash, semicolon,
// comma and newlines. CRLF pairs are treated as one newline. Any other
// control character (except horizontal tab) has no legal escape and fails.
func escapeText(property, s string) (string, error) {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case ';':
			b.WriteString(`\;`)
		case ',':
			b.WriteString(`\,`)
		case '\n':
			b.WriteString(`\n`)
		default:
			if (r < 0x20 && r != '\t') || r == 0x7f {
				return "", &SerializationError{
					Property: property,
					Message:  fmt.Sprintf("control character %#02x has no legal escape", r),
				}
			}
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// foldLine wraps a content line longer than 75 octets using CRLF plus a
// single-space continuation. Breaks land only on octet boundaries that split
// neither a multi-byte UTF-8 character nor a backslash escape sequence; a
// line where no such boundary exists indicates broken upstream escaping and
// is fatal.
func foldLine(line string) (string, error) {
	if len(line) <= foldLimit {
		return line, nil
	}

	var b strings.Builder
	rem := line
	limit := foldLimit
	for len(rem) > limit {
		cut := limit
		for cut > 0 && isUTF8Continuation(rem[cut]) {
			cut--
		}
		// An odd run of backslashes before the cut means the cut would
		// separate an escape's backslash from its escaped character.
		for cut > 0 && trailingBackslashes(rem[:cut])%2 == 1 {
			cut--
		}
		if cut == 0 {
			return "", &SerializationError{
				Property: "content line",
				Message:  "folding found no octet boundary outside escape sequences and multi-byte characters",
			}
		}
		b.WriteString(rem[:cut])
		b.WriteString("\r\n ")
		rem = rem[cut:]
		// The continuation space occupies one of the 75 octets.
		limit = foldLimit - 1
	}
	b.WriteString(rem)
	return b.String(), nil
}

func isUTF8Continuation(c byte) bool {
	return c&0xc0 == 0x80
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}
