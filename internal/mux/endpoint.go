package mux

import (
	"path/filepath"
	"strings"
	"unicode"
)

// SanitizeWorkspace normalizes a workspace name for use in a socket
// filename: lowercase, every run of non-alphanumerics collapsed to one
// dash, leading and trailing dashes dropped.
func SanitizeWorkspace(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		} else if b.Len() > 0 && !strings.HasSuffix(b.String(), "-") {
			b.WriteRune('-')
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// SocketPath builds the endpoint path for a workspace inside dir
func SocketPath(dir, workspace string) string {
	return filepath.Join(dir, "hostpeek-"+SanitizeWorkspace(workspace)+".sock")
}
