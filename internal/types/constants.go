// Package types provides type-safe constants shared across strata packages.
//
// This package centralizes the enumerated types used by the platform, source
// and update packages, replacing magic strings with typed constants that
// provide validation methods.
package types

import (
	"fmt"
	"strings"
)

// SourceKind represents where acquirable content comes from.
type SourceKind string

const (
	// SourceKindLocalPath indicates a directory on the local filesystem.
	SourceKindLocalPath SourceKind = "local-path"
	// SourceKindGitHTTPS indicates a git repository reached over http(s).
	SourceKindGitHTTPS SourceKind = "git-url"
	// SourceKindGitSSH indicates a git repository reached over ssh.
	SourceKindGitSSH SourceKind = "git-ssh"
	// SourceKindLatestRelease indicates the latest published release of strata itself.
	SourceKindLatestRelease SourceKind = "latest-release"
	// SourceKindUnknown is any input that could not be classified.
	SourceKindUnknown SourceKind = "unknown"
)

// GitSuffix ends every git URL strata accepts.
const GitSuffix = ".git"

// AllSourceKinds returns all valid (non-unknown) source kinds.
func AllSourceKinds() []SourceKind {
	return []SourceKind{SourceKindLocalPath, SourceKindGitHTTPS, SourceKindGitSSH, SourceKindLatestRelease}
}

// Validate checks if the SourceKind is a valid value.
func (k SourceKind) Validate() error {
	switch k {
	case SourceKindLocalPath, SourceKindGitHTTPS, SourceKindGitSSH, SourceKindLatestRelease:
		return nil
	case "", SourceKindUnknown:
		return fmt.Errorf("source kind is unknown")
	default:
		return fmt.Errorf("invalid source kind '%s' (must be local-path, git-url, git-ssh, or latest-release)", k)
	}
}

// String returns the string representation of the SourceKind.
func (k SourceKind) String() string {
	if k == "" {
		return string(SourceKindUnknown)
	}
	return string(k)
}

// IsValid returns true if the kind is anything other than unknown.
func (k SourceKind) IsValid() bool {
	return k.Validate() == nil
}

// IsGit returns true for both git transports.
func (k SourceKind) IsGit() bool {
	return k == SourceKindGitHTTPS || k == SourceKindGitSSH
}

// RequiresNetwork returns true if content of this kind is fetched remotely.
// Only directories of such kinds are owned (and deleted) by strata.
func (k SourceKind) RequiresNetwork() bool {
	return k.IsGit() || k == SourceKindLatestRelease
}

// ParseSourceKind parses a string into a SourceKind.
// Returns an error if the string is not a valid source kind.
func ParseSourceKind(s string) (SourceKind, error) {
	sk := SourceKind(strings.ToLower(strings.TrimSpace(s)))
	if err := sk.Validate(); err != nil {
		return "", err
	}
	return sk, nil
}

// Family represents an operating system family strata can run on.
type Family string

const (
	// FamilyWindows is Microsoft Windows.
	FamilyWindows Family = "windows"
	// FamilyLinux is any Linux distribution.
	FamilyLinux Family = "linux"
	// FamilyMacOS is Apple macOS.
	FamilyMacOS Family = "macos"
	// FamilyUnsupported is every other platform.
	FamilyUnsupported Family = "unsupported"
)

// AllFamilies returns all supported families.
func AllFamilies() []Family {
	return []Family{FamilyWindows, FamilyLinux, FamilyMacOS}
}

// FamilyFromGOOS maps a runtime.GOOS value to a Family.
// Anything not explicitly recognized is unsupported.
func FamilyFromGOOS(goos string) Family {
	switch goos {
	case "windows":
		return FamilyWindows
	case "linux":
		return FamilyLinux
	case "darwin":
		return FamilyMacOS
	default:
		return FamilyUnsupported
	}
}

// IsSupported returns true if strata can run on this family.
func (f Family) IsSupported() bool {
	switch f {
	case FamilyWindows, FamilyLinux, FamilyMacOS:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Family.
func (f Family) String() string {
	if f == "" {
		return string(FamilyUnsupported)
	}
	return string(f)
}

// ReleaseSuffix returns the filename suffix of release assets built for
// this family, e.g. "linux.zip". Unsupported families have no suffix.
func (f Family) ReleaseSuffix() string {
	if !f.IsSupported() {
		return ""
	}
	return string(f) + ".zip"
}
