// Package misc keeps build related information.
package misc

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
)

var (
	version = "dev"
	gitHash = ""
)

// GetAppName returns name of the running program without extension.
func GetAppName() string {
	name := filepath.Base(os.Args[0])
	if n := strings.TrimSuffix(name, filepath.Ext(name)); len(n) > 0 && n != "." {
		return n
	}
	return "opfgen"
}

// GetVersion returns program version, could be set with -ldflags.
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && len(bi.Main.Version) > 0 && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return version
}

// GetGitHash returns VCS revision program was built from, if known.
func GetGitHash() string {
	if len(gitHash) > 0 {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
