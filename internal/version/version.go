// Package version carries build metadata, set via -ldflags at release time.
package version

var (
	// Version is the release version of the analysis tools.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is when the binary was built.
	BuildTime = "unknown"
)
