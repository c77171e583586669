// Package version reports the build identity of the bahn binary.
package version

import (
	"runtime/debug"
)

const unknown = "unknown"

// Build identity, set at link time with
// -ldflags "-X github.com/Sumatoshi-tech/bahn/pkg/version.Version=v1.2.3".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

const shortCommitLen = 12

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown && setting.Value != "" {
				Commit = setting.Value
				if len(Commit) > shortCommitLen {
					Commit = Commit[:shortCommitLen]
				}
			}
		case "vcs.time":
			if Date == unknown && setting.Value != "" {
				Date = setting.Value
			}
		}
	}
}

// String returns the line printed by bahn version.
func String() string {
	return "bahn " + Version + " (commit: " + Commit + ", built: " + Date + ")"
}
