package models

import (
	"fmt"
	"strings"
)

// ArchiveFormat selects how a staged artifact is packaged for distribution.
type ArchiveFormat string

// Supported archive formats.
const (
	ArchiveTarZst ArchiveFormat = "tar.zst"
	ArchiveZip    ArchiveFormat = "zip"
)

// Ext returns the file extension used in staged artifact names.
func (f ArchiveFormat) Ext() string {
	return string(f)
}

// Valid reports whether the format is one the collector knows how to produce.
func (f ArchiveFormat) Valid() bool {
	switch f {
	case ArchiveTarZst, ArchiveZip:
		return true
	default:
		return false
	}
}

// BuildConfig describes one named release target: the toolchain triple to
// compile for, the binary it produces, and how the result is packaged.
// Configs are loaded once from the registry and never mutated afterwards.
type BuildConfig struct {
	// Name is the unique key used on the command line (e.g. "linux64").
	Name string `yaml:"name"`

	// Target is the toolchain target triple.
	Target string `yaml:"target"`

	// WindowsHostTarget optionally overrides Target when the build host
	// itself runs Windows (msvc toolchains instead of gnu cross ones).
	WindowsHostTarget string `yaml:"windows_host_target,omitempty"`

	// Bin is the base name of the binary the toolchain produces.
	Bin string `yaml:"bin"`

	// Flags are appended verbatim to the toolchain invocation.
	Flags []string `yaml:"flags,omitempty"`

	// Env holds extra environment variables for the toolchain process.
	Env map[string]string `yaml:"env,omitempty"`

	// Archive selects the distribution packaging for this target.
	Archive ArchiveFormat `yaml:"archive"`
}

// ResolvedTarget returns the triple to build for on the given host OS.
func (c BuildConfig) ResolvedTarget(hostOS string) string {
	if hostOS == "windows" && c.WindowsHostTarget != "" {
		return c.WindowsHostTarget
	}
	return c.Target
}

// TargetsWindows reports whether the config produces a Windows binary.
func (c BuildConfig) TargetsWindows(hostOS string) bool {
	return strings.Contains(c.ResolvedTarget(hostOS), "windows")
}

// BinaryName returns the file name the toolchain is expected to produce.
func (c BuildConfig) BinaryName(hostOS string) string {
	if c.TargetsWindows(hostOS) {
		return c.Bin + ".exe"
	}
	return c.Bin
}

// Validate checks the fields required before a config may be registered.
func (c BuildConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("config name is required")
	}
	if strings.TrimSpace(c.Target) == "" {
		return fmt.Errorf("config %q: target triple is required", c.Name)
	}
	if strings.TrimSpace(c.Bin) == "" {
		return fmt.Errorf("config %q: bin name is required", c.Name)
	}
	if !c.Archive.Valid() {
		return fmt.Errorf("config %q: unsupported archive format %q", c.Name, c.Archive)
	}
	return nil
}
