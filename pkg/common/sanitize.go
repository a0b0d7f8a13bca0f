package common

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// MaxMessageLength caps messages returned to callers
const MaxMessageLength = 512

var absPathRegex = regexp.MustCompile(`(^|[\s:="'(])((?:/[A-Za-z0-9._@+-]+){2,}/?|[A-Za-z]:\\[^\s"']+)`)

// SanitizeMessage makes an error or output string safe to hand to a caller:
// control characters become visible escapes, absolute filesystem paths are
// redacted and the result is capped at MaxMessageLength bytes.
func SanitizeMessage(s string) string {
	s = absPathRegex.ReplaceAllString(s, "${1}[path]")
	s = EscapeControl(s)
	if len(s) > MaxMessageLength {
		cut := MaxMessageLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// EscapeControl replaces control characters other than newline and tab with
// visible escape sequences, e.g. "\x1b"
func EscapeControl(s string) string {
	idx := 0
	// fast path: scan until we find a control rune / invalid UTF-8 byte
	for idx < len(s) {
		r, size := utf8.DecodeRuneInString(s[idx:])
		if r == utf8.RuneError && size == 1 {
			break
		}
		if r != '\n' && r != '\t' && unicode.IsControl(r) {
			break
		}
		idx += size
	}
	if idx == len(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteString(s[:idx])

	for idx < len(s) {
		r, size := utf8.DecodeRuneInString(s[idx:])
		switch {
		case r == utf8.RuneError && size == 1:
			appendEscapedByte(&b, s[idx])
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == '\r':
			// ping on some platforms ends lines with CRLF
			if idx+1 >= len(s) || s[idx+1] != '\n' {
				appendEscapedByte(&b, '\r')
			}
		case unicode.IsControl(r):
			if r <= 0xFF {
				appendEscapedByte(&b, byte(r))
			} else {
				b.WriteString(`\u`)
				for shift := 12; shift >= 0; shift -= 4 {
					b.WriteByte(hexDigits[(r>>shift)&0x0f])
				}
			}
		default:
			b.WriteString(s[idx : idx+size])
		}
		idx += size
	}

	return b.String()
}

func appendEscapedByte(b *strings.Builder, bt byte) {
	b.WriteString(`\x`)
	b.WriteByte(hexDigits[bt>>4])
	b.WriteByte(hexDigits[bt&0x0f])
}
