// Package version reports build and dependency metadata of the running binary.
package version

import (
	"runtime"
	"runtime/debug"
	"strings"
)

// Info describes the build
type Info struct {
	Go         string `json:"go"`
	Version    string `json:"version"`
	CELGo      string `json:"cel-go,omitempty"`
	Commit     string `json:"commit,omitempty"`
	CommitTime string `json:"commit_time,omitempty"`
}

// Get reads the build information embedded by the Go toolchain. Fields that
// are not available stay empty; the version falls back to "devel".
func Get() Info {
	info := Info{
		Go:      strings.TrimPrefix(runtime.Version(), "go"),
		Version: "devel",
	}

	build, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if v := build.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}

	for _, m := range build.Deps {
		if m.Path == "github.com/google/cel-go" {
			info.CELGo = m.Version
		}
	}

	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Commit = setting.Value
		case "vcs.time":
			info.CommitTime = setting.Value
		}
	}

	return info
}

// String is a one line summary of the build
func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Version)
	if i.CELGo != "" {
		b.WriteString(" (cel-go " + i.CELGo + ")")
	}
	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		b.WriteString(" " + commit)
	}
	return b.String()
}
