// Package version reports which taxhist build is running.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X taxhist/internal/version.Commit=...". When left
// unknown, the VCS stamp embedded by the go tool is used instead.
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

const unknown = "unknown"

// BuildInfo identifies a build.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	Modified  bool   `json:"modified,omitempty"`
}

// Current returns the build info, falling back to VCS settings for fields
// not set through ldflags.
func Current() BuildInfo {
	info := BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info = withSettings(info, bi.Settings)
	}
	return info
}

func withSettings(info BuildInfo, settings []debug.BuildSetting) BuildInfo {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == unknown && s.Value != "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildDate == unknown && s.Value != "" {
				info.BuildDate = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// Short is the version with an abbreviated commit, e.g. "0.4.0 (abc1234)".
func (b BuildInfo) Short() string {
	if b.Commit == unknown || len(b.Commit) < 7 {
		return b.Version
	}
	s := b.Version + " (" + b.Commit[:7]
	if b.Modified {
		s += "-dirty"
	}
	return s + ")"
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("taxhist version %s\nCommit: %s\nBuilt: %s", b.Version, b.Commit, b.BuildDate)
}

// Info returns Current().Short().
func Info() string {
	return Current().Short()
}

// Full returns Current().String().
func Full() string {
	return Current().String()
}
