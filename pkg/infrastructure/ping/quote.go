package ping

import (
	"regexp"
	"strings"
)

var safeWordRegex = regexp.MustCompile(`^[A-Za-z0-9@%+=:,./_-]+$`)

// ShellQuote quotes s for a POSIX shell so that every metacharacter in it is
// inert. Words made only of safe characters are returned unchanged.
func ShellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if safeWordRegex.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// DisplayCommand renders an argument vector as a copy-pasteable shell line
func DisplayCommand(path string, args []string) string {
	words := make([]string, 0, len(args)+1)
	words = append(words, ShellQuote(path))
	for _, arg := range args {
		words = append(words, ShellQuote(arg))
	}
	return strings.Join(words, " ")
}
