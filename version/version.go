// Package version provides the symbolic version of the bloatprobe binary.
package version

// Version is the symbolic version (if any) of this program. It is meant
// to be set at build time using:
//
//	-ldflags "-X github.com/m-lab/bloatprobe/version.Version=$(git describe --tags)"
var Version = "unknown"
