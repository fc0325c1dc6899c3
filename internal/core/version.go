package core

import (
	"fmt"
	"regexp"
	"runtime/debug"
	"strings"
)

// Version is resolved from build info at startup
var Version = resolveVersion()

// pseudoVersionHash matches the trailing commit hash of a Go pseudo-version
// such as v0.0.0-20260217105831-82903d1d8810.
var pseudoVersionHash = regexp.MustCompile(`-[0-9a-f]{12}$`)

func resolveVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}

	if v := info.Main.Version; v != "" && v != "(devel)" && !isPseudoVersion(v) {
		return v
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	revision := settings["vcs.revision"]
	if revision == "" {
		return "devel"
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}

	version := fmt.Sprintf("devel-%s", revision)
	if settings["vcs.modified"] == "true" {
		version += "-dirty"
	}
	return version
}

// FormatVersion strips the "v" prefix of tagged releases for display
func FormatVersion(v string) string {
	return strings.TrimPrefix(v, "v")
}

// isPseudoVersion reports whether v looks like a Go module pseudo-version
func isPseudoVersion(v string) bool {
	if i := strings.Index(v, "+"); i >= 0 {
		v = v[:i]
	}
	return pseudoVersionHash.MatchString(v)
}
