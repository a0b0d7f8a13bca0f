package common

import (
	"strings"
	"testing"
)

func TestEscapeControl(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "64 bytes from 8.8.8.8", "64 bytes from 8.8.8.8"},
		{"newline and tab kept", "a\tb\nc", "a\tb\nc"},
		{"escape sequence", "hi\x1b[31mred", `hi\x1b[31mred`},
		{"nul", "nul:\x00", `nul:\x00`},
		{"invalid utf8", "bad:\xff", `bad:\xff`},
		{"crlf", "line\r\nnext", "line\nnext"},
		{"lone cr", "over\rwrite", `over\x0dwrite`},
		{"unicode kept", "héllo", "héllo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeControl(tt.input); got != tt.expected {
				t.Errorf("EscapeControl(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no paths", "connection refused", "connection refused"},
		{"unix path", `exec: "/usr/local/bin/ping": permission denied`, `exec: "[path]": permission denied`},
		{"state dir", "open /var/lib/netcheck/abc.json: no such file", "open [path]: no such file"},
		{"address kept", "dial tcp 10.0.0.1:80: connect: connection refused", "dial tcp 10.0.0.1:80: connect: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeMessage(tt.input); got != tt.expected {
				t.Errorf("SanitizeMessage(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeMessage_Truncates(t *testing.T) {
	got := SanitizeMessage(strings.Repeat("x", 2*MaxMessageLength))
	if len(got) != MaxMessageLength+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("len(SanitizeMessage(long)) = %d, want %d with ellipsis", len(got), MaxMessageLength+3)
	}
}
