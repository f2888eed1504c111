// Package nodepath splits slash-separated host node paths into their
// components, tolerating the leading/trailing/doubled slash variants that
// show up in user input.
package nodepath

import "strings"

// Split breaks a node path into its parts:
//
//	"/root/Main/Player" -> ["root", "Main", "Player"]
//
// Leading and trailing slashes, and runs of slashes, do not produce empty
// parts. An empty or all-slash path yields an empty slice.
func Split(path string) []string {
	parts := []string{}
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
