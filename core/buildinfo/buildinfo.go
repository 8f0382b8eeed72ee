// Package buildinfo reports the version of the running binary. Release
// builds set the variables with -ldflags, for example
//
//	-X 'github.com/m3rciful/hotelbot/core/buildinfo.Version=v1.2.3'
//
// Local builds fall back to the VCS stamp the go tool embeds.
package buildinfo

import "runtime/debug"

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the source revision.
	Commit = ""
	// Date is the build or commit time in RFC3339.
	Date = ""
)

// Info is the resolved build metadata.
type Info struct {
	Version string
	Commit  string
	Date    string
	// Modified is set when the working tree had uncommitted changes.
	Modified bool
}

// Get returns the ldflags values, filling blanks from the embedded VCS
// settings.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	if info.Commit == "" {
		info.Commit = "local"
	}
	return info
}
