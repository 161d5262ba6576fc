// Package version holds build metadata for the sumika binaries, injected
// via -ldflags "-X github.com/sumika-cloud/sumika/internal/version.Version=...".
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
