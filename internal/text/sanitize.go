// Package text implements sanitization, heading detection, size-bounded
// chunking with overlap, and page-number attribution for converted documents.
package text

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Sanitize normalizes raw extracted text for storage. Invalid UTF-8 sequences
// and non-printable control characters (everything below 0x20 except newline
// and tab, plus DEL) are dropped, then the result is NFC-normalized.
// Sanitize is pure and idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	return norm.NFC.String(s)
}
