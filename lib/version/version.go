// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"io"
	"runtime/debug"
)

// Version is the release version, overridable with
// -ldflags "-X github.com/bureau-foundation/mutator/lib/version.Version=...".
var Version = "0.1.0-dev"

// Info returns "<version> (<commit>[-dirty], <time>)" using the VCS
// stamps the Go toolchain embeds in the binary.
func Info() string {
	return format(Version, readSettings())
}

// Print writes "<name> <Info()>" to w.
func Print(w io.Writer, name string) {
	fmt.Fprintf(w, "%s %s\n", name, Info())
}

func readSettings() map[string]string {
	settings := make(map[string]string)
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	for _, setting := range info.Settings {
		settings[setting.Key] = setting.Value
	}
	return settings
}

func format(version string, settings map[string]string) string {
	commit := settings["vcs.revision"]
	if commit == "" {
		commit = "unknown"
	} else if len(commit) > 12 {
		commit = commit[:12]
	}
	if settings["vcs.modified"] == "true" {
		commit += "-dirty"
	}
	buildTime := settings["vcs.time"]
	if buildTime == "" {
		buildTime = "unknown"
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, buildTime)
}
