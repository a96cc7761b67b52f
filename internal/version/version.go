package version

import (
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Set through -ldflags at release time.
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info describes the running build.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

func (i Info) String() string {
	if i.Commit == "" || i.Commit == "unknown" {
		return fmt.Sprintf("voxsub v%s", i.Version)
	}
	return fmt.Sprintf("voxsub v%s (commit %s, built %s)", i.Version, i.Commit, i.Date)
}

var resolved = sync.OnceValue(func() string {
	return resolveVersion(Version, runGit)
})

// Resolve returns the full version string, appending a git-derived suffix
// when the binary is run from inside a git repository whose HEAD is not on
// a release tag. The result is computed once per process.
func Resolve() string {
	return resolved()
}

// Current returns the build information with the resolved version.
func Current() Info {
	return Info{Version: Resolve(), Commit: Commit, Date: Date}
}

func resolveVersion(base string, git func(...string) (string, error)) string {
	if base == "" {
		base = "0.0.0"
	}

	suffix := computeGitSuffix(base, git)
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

func computeGitSuffix(base string, git func(...string) (string, error)) string {
	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return ""
	}

	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return ""
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil {
		return ""
	}

	prefix := "v" + base + "-"
	if strings.HasPrefix(desc, prefix) {
		return strings.TrimPrefix(desc, prefix)
	}

	return desc
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
