package version

import "fmt"

var (
	// Version is the semantic version of the binary. Overridden at build time.
	Version = "dev"
	// Commit is the git commit hash. Overridden at build time.
	Commit = "unknown"
	// BuildDate is the build timestamp. Overridden at build time.
	BuildDate = "unknown"
)

// String renders the build information printed by `goldprice version`.
func String() string {
	return fmt.Sprintf("goldprice %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildDate)
}
