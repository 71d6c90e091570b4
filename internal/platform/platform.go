// Package platform describes the operating system strata runs on and the
// identity of the running executable.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adamancini/strata/internal/types"
)

// StagedPrefix is prepended to the executable name to form the staged
// replacement binary that lives beside the installed one during an update.
const StagedPrefix = "latest-"

var (
	// Test seams.
	osExecutable = os.Executable
	evalSymlinks = filepath.EvalSymlinks
)

// Platform is an immutable snapshot of the current OS family and executable.
type Platform struct {
	Family         types.Family
	ExecutableName string
	ExecutablePath string
	ExecutableDir  string
	StagedPrefix   string
}

// Detect returns the current platform. Unrecognized operating systems get
// FamilyUnsupported; callers must check IsValid before doing anything else.
func Detect() Platform {
	exe, err := osExecutable()
	if err != nil {
		exe = ""
	}
	if exe != "" {
		if resolved, err := evalSymlinks(exe); err == nil {
			exe = resolved
		}
	}
	return New(types.FamilyFromGOOS(runtime.GOOS), exe)
}

// New builds a Platform for the given family and executable path.
func New(family types.Family, executablePath string) Platform {
	p := Platform{
		Family:       family,
		StagedPrefix: StagedPrefix,
	}
	if executablePath == "" {
		return p
	}
	p.ExecutablePath = executablePath
	p.ExecutableName = filepath.Base(executablePath)
	p.ExecutableDir = filepath.Dir(executablePath)
	return p
}

// IsValid returns true if the family is supported and the executable and
// its directory exist on disk.
func (p Platform) IsValid() bool {
	if !p.Family.IsSupported() || p.ExecutableName == "" {
		return false
	}
	if _, err := os.Stat(p.ExecutablePath); err != nil {
		return false
	}
	if _, err := os.Stat(p.ExecutableDir); err != nil {
		return false
	}
	return true
}

// StagedPath returns the path of the staged replacement binary, e.g.
// /opt/bin/latest-strata. It returns "" if name or directory is unknown.
func (p Platform) StagedPath() string {
	if p.ExecutableName == "" || p.ExecutableDir == "" {
		return ""
	}
	return filepath.Join(p.ExecutableDir, p.prefix()+p.ExecutableName)
}

// OriginalPathFromStaged strips the staged prefix from the current
// executable name and returns the path of the binary it should replace.
// Only meaningful when IsStaged is true.
func (p Platform) OriginalPathFromStaged() string {
	if p.ExecutableName == "" || p.ExecutableDir == "" {
		return ""
	}
	return filepath.Join(p.ExecutableDir, strings.TrimPrefix(p.ExecutableName, p.prefix()))
}

// IsStaged returns true if the running executable is a staged copy.
func (p Platform) IsStaged() bool {
	return p.ExecutableName != "" && strings.HasPrefix(p.ExecutableName, p.prefix())
}

// MatchesAsset returns true if a release asset filename was built for this
// platform's family.
func (p Platform) MatchesAsset(name string) bool {
	suffix := p.Family.ReleaseSuffix()
	if suffix == "" {
		return false
	}
	return strings.HasSuffix(name, suffix)
}

func (p Platform) prefix() string {
	if p.StagedPrefix == "" {
		return StagedPrefix
	}
	return p.StagedPrefix
}
