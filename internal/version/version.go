// Package version holds build metadata injected via ldflags.
package version

import "fmt"

// Values are overridden at build time, e.g.
// -ldflags "-X github.com/bissquit/orgstatus/internal/version.Version=1.2.0".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Get returns the build metadata.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    GitCommit,
		BuildDate: BuildDate,
	}
}

// String formats the info for CLI output.
func (i Info) String() string {
	return fmt.Sprintf("orgstatus %s (commit %s, built %s)", i.Version, i.Commit, i.BuildDate)
}
