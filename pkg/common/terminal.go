package common

import (
	"github.com/olekukonko/ts"
)

const defaultTerminalWidth = 80

// TerminalWidth is the width of the terminal
var TerminalWidth int

func init() {
	TerminalWidth = terminalWidth()
}

func terminalWidth() int {
	size, err := ts.GetSize()
	if err != nil || size.Col() <= 0 {
		return defaultTerminalWidth
	}
	return size.Col()
}
