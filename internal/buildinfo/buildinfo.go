// ABOUTME: Build and process metadata created once at startup and passed explicitly
// ABOUTME: Carries version, commit, build date, Go runtime and process start time

package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

// Info describes the running binary. Construct it once in main with New.
type Info struct {
	Version   string
	Commit    string
	BuildDate string
	Runtime   string
	Started   time.Time
}

// New builds an Info from linker-provided values. Empty values fall back to
// the module build information embedded by the Go toolchain.
func New(version, commit, buildDate string) Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		Runtime:   fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
		Started:   time.Now().UTC(),
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" || info.Version == "dev" {
			if v := bi.Main.Version; v != "" && v != "(devel)" {
				info.Version = v
			}
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "" {
					info.BuildDate = s.Value
				}
			}
		}
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	return info
}

// Uptime returns how long the process has been running at now.
func (i Info) Uptime(now time.Time) time.Duration {
	return now.Sub(i.Started)
}

// String formats the version for banners and --version output.
func (i Info) String() string {
	commit := i.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("%s (%s, %s)", i.Version, commit, i.BuildDate)
}
