// Package version carries build metadata stamped in with -ldflags.
package version

var (
	Version   = "development"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
