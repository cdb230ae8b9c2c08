// Package terminal discovers the display width used for charts.
package terminal

import (
	"os"
	"strconv"

	"golang.org/x/term"
)

// DefaultWidth is used when no probe reports a usable width.
const DefaultWidth = 80

// Width returns the column count of f when it is a terminal, then the
// COLUMNS environment variable, then DefaultWidth.
func Width(f *os.File) int {
	if f != nil && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return fromEnv(os.Getenv("COLUMNS"))
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func fromEnv(columns string) int {
	if n, err := strconv.Atoi(columns); err == nil && n > 0 {
		return n
	}
	return DefaultWidth
}
