// Package version provides build-time version information for sgtm-debug.
// These values are set via ldflags during the build process.
package version

var (
	// Version is the semantic version of the build.
	// Set via ldflags: -X github.com/sgtm-tools/sgtm-debug/version.Version=x.y.z.
	Version = "dev"

	// Commit is the git commit hash of the build.
	// Set via ldflags: -X github.com/sgtm-tools/sgtm-debug/version.Commit=abc123.
	Commit = "unknown"
)

// String returns a formatted version string including version and commit.
func String() string {
	return Version + " (" + Commit + ")"
}
