// Package version provides version information.
package version

// Version is the current version of hostpeek
const Version = "0.1.0"

// GetVersion returns the current version
func GetVersion() string {
	return Version
}
