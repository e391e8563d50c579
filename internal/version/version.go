// Package version reports the build metadata of the clickprep binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at link time, e.g.
// -ldflags "-X github.com/paveg/clickprep/internal/version.Version=v0.3.0"
var (
	Version   = "dev"
	GitCommit = ""
	BuildDate = ""
)

const (
	shortCommit = 7
	arrowModule = "github.com/apache/arrow-go/v18"
)

// BuildInfo is what `clickprep version` prints.
type BuildInfo struct {
	Version   string
	Commit    string // abbreviated; empty when unknown
	Modified  bool   // built from a dirty tree
	BuildDate string
	GoVersion string
	Arrow     string // linked arrow-go version, which also writes the Parquet files
}

// Info collects the link-time variables, falling back to the VCS stamp the
// go command embeds when GitCommit was not set.
func Info() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}

	commit := GitCommit
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Arrow = moduleVersion(bi, arrowModule)
		if commit == "" {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					commit = s.Value
				case "vcs.modified":
					info.Modified = s.Value == "true"
				}
			}
		}
	}

	commit, dirty := strings.CutSuffix(commit, "-dirty")
	info.Modified = info.Modified || dirty
	info.Commit = abbreviate(commit)
	return info
}

func moduleVersion(bi *debug.BuildInfo, path string) string {
	for _, dep := range bi.Deps {
		if dep.Path == path {
			if dep.Replace != nil {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	return ""
}

func abbreviate(commit string) string {
	if len(commit) > shortCommit {
		return commit[:shortCommit]
	}
	return commit
}

// Short renders the version and commit, e.g. "v0.3.0 (abc123d, modified)".
func (b BuildInfo) Short() string {
	switch {
	case b.Commit == "":
		return b.Version
	case b.Modified:
		return fmt.Sprintf("%s (%s, modified)", b.Version, b.Commit)
	default:
		return fmt.Sprintf("%s (%s)", b.Version, b.Commit)
	}
}

// String renders the full report, one field per line. Unknown fields are
// left out.
func (b BuildInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "clickprep %s\n", b.Short())
	if b.BuildDate != "" {
		fmt.Fprintf(&sb, "  built:    %s\n", b.BuildDate)
	}
	fmt.Fprintf(&sb, "  go:       %s\n", b.GoVersion)
	if b.Arrow != "" {
		fmt.Fprintf(&sb, "  arrow-go: %s\n", b.Arrow)
	}
	return sb.String()
}
