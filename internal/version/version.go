// Package version reports build information for the rollup binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	unknownValue     = "unknown"
	commitHashLength = 7
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	BuildDate = unknownValue
	GitCommit = unknownValue
	GoVersion = runtime.Version()
)

// Components are the modules whose versions decide rollup's behavior: the
// table format and the database drivers.
var Components = []string{
	"github.com/apache/arrow-go/v18",
	"github.com/lib/pq",
	"modernc.org/sqlite",
	"github.com/marcboeker/go-duckdb",
}

// BuildInfo contains build information
type BuildInfo struct {
	Version    string   `json:"version"`
	BuildDate  string   `json:"build_date"`
	GitCommit  string   `json:"git_commit"`
	GoVersion  string   `json:"go_version"`
	Dirty      bool     `json:"dirty"`
	Module     string   `json:"module"`
	Components []Module `json:"components"`
}

// Module is a dependency and the version linked into the binary.
type Module struct {
	Path    string `json:"path"`
	Version string `json:"version"`
}

// Info returns build information. When GitCommit was not set at link time
// the VCS revision recorded by the go tool is used.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
		Dirty:     strings.HasSuffix(GitCommit, "-dirty"),
	}

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.Module = buildInfo.Main.Path

	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.GitCommit == unknownValue {
				info.GitCommit = setting.Value
			}
		case "vcs.modified":
			info.Dirty = info.Dirty || setting.Value == "true"
		}
	}

	for _, dep := range buildInfo.Deps {
		for _, path := range Components {
			if dep.Path == path {
				info.Components = append(info.Components, Module{Path: dep.Path, Version: dep.Version})
			}
		}
	}

	return info
}

// String returns a formatted version string
func (b BuildInfo) String() string {
	var sb strings.Builder
	sb.WriteString("rollup\n")
	fmt.Fprintf(&sb, "Version: %s", b.Version)
	if b.Dirty {
		sb.WriteString(" (dirty)")
	}
	sb.WriteString("\n")

	if b.BuildDate != unknownValue {
		fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	}

	if b.GitCommit != unknownValue {
		commit := b.GitCommit
		if len(commit) > commitHashLength {
			commit = commit[:commitHashLength]
		}
		fmt.Fprintf(&sb, "Git Commit: %s\n", commit)
	}

	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)

	for _, m := range b.Components {
		fmt.Fprintf(&sb, "  %s %s\n", m.Path, m.Version)
	}

	return sb.String()
}

// UserAgent identifies rollup to database servers, for example as the
// Postgres application_name.
func UserAgent() string {
	return "rollup/" + Version
}

// IsRelease returns true if this is a release version (not dev)
func IsRelease() bool {
	return Version != "dev" && !strings.Contains(Version, "-")
}
