// Package version exposes build metadata stamped in via ldflags.
package version

import "fmt"

// Populated by the linker at release time; "unknown" in plain go builds.
var (
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String renders the human-readable version line shown by --version and
// the health endpoint. Versioning is commit-based, there is no semver.
func String() string {
	commit := Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("ocswarm dev (commit: %s, built: %s)", commit, BuildTime)
}
