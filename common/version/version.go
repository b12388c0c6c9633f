// Package version provides build-time version information
package version

var (
	// Version is the semantic version (set via ldflags)
	Version = "v0.0.0-dev"

	// GitCommit is the git commit hash (set via ldflags)
	GitCommit = "unknown"
)

// String returns the version and commit for --version output.
func String() string {
	return Version + " (" + GitCommit + ")"
}
