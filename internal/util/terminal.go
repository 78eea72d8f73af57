package util

import "golang.org/x/term"

// IsTerminal checks if the given file descriptor is a terminal.
// Progress bars and colors are suppressed when output is redirected.
func IsTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}
