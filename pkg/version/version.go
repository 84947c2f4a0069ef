// Package version reports the semdesk build.
//
// Release builds stamp the variables with ldflags:
//
//	-X github.com/Aman-CERP/semdesk/pkg/version.Version=$(VERSION)
//	-X github.com/Aman-CERP/semdesk/pkg/version.Commit=$(git rev-parse --short HEAD)
//	-X github.com/Aman-CERP/semdesk/pkg/version.Date=$(date -u +%FT%TZ)
//
// Builds without ldflags (go install, go run) fall back to the VCS stamp
// the toolchain embeds, when there is one.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is "dev" unless stamped.
var Version = "dev"

// Build stamps. "unknown" means neither ldflags nor VCS info provided one.
var (
	Commit = "unknown"
	Date   = "unknown"
)

// GoVersion is the toolchain the binary was built with.
var GoVersion = runtime.Version()

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	applyBuildInfo(info)
}

// applyBuildInfo fills the stamps ldflags left unset from the module and
// VCS settings recorded in the binary.
func applyBuildInfo(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && s.Value != "" {
				Commit = s.Value
				if len(Commit) > 12 {
					Commit = Commit[:12]
				}
			}
		case "vcs.time":
			if Date == "unknown" && s.Value != "" {
				Date = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && Commit != "unknown" {
		Commit += "-dirty"
	}
}

// BuildInfo is the JSON form of the build, used by `semdesk version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("semdesk %s (commit: %s, built: %s, go: %s, %s/%s)",
		Version, Commit, Date, GoVersion, runtime.GOOS, runtime.GOARCH)
}

// Short returns just the version.
func Short() string {
	return Version
}

// GetInfo returns the build as a struct.
func GetInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}
