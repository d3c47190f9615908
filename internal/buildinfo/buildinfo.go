// Package buildinfo exposes linker-overridable build metadata.
package buildinfo

import (
	"runtime/debug"
	"strings"
)

// Linker-overridable build metadata.
var (
	Version    = "0.1.0"
	CommitHash = ""
)

// Info is normalized build metadata for display.
type Info struct {
	Version    string
	CommitHash string
}

// Current returns build metadata from linker overrides, with runtime build
// settings as fallback when available.
func Current() Info {
	info := Info{
		Version:    strings.TrimSpace(Version),
		CommitHash: strings.TrimSpace(CommitHash),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if (info.Version == "" || info.Version == "0.1.0") && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		if info.CommitHash == "" {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" {
					info.CommitHash = strings.TrimSpace(s.Value)
				}
			}
		}
	}
	return info
}

// Short returns "version (commit)" suitable for --version output.
func (i Info) Short() string {
	if i.CommitHash == "" {
		return i.Version
	}
	hash := i.CommitHash
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return i.Version + " (" + hash + ")"
}
