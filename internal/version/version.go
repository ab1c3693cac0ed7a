// Package version carries the build identity stamped into the binary via
// -ldflags, logged once at startup.
package version

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
