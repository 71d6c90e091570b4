package update

import "fmt"

// UpdateInfo describes the running version against the latest release.
type UpdateInfo struct {
	Available      bool   `json:"available" yaml:"available"`
	CurrentVersion string `json:"current_version" yaml:"current_version"`
	LatestVersion  string `json:"latest_version" yaml:"latest_version"`
	ReleaseURL     string `json:"release_url,omitempty" yaml:"release_url,omitempty"`
	// Development is set when the running binary carries no release
	// version; such builds always report an update.
	Development bool `json:"development,omitempty" yaml:"development,omitempty"`
}

func (i UpdateInfo) String() string {
	switch {
	case i.Development:
		return fmt.Sprintf("Development build %s, latest release is %s", i.CurrentVersion, i.LatestVersion)
	case i.Available:
		return fmt.Sprintf("Update available: %s -> %s", i.CurrentVersion, i.LatestVersion)
	default:
		return fmt.Sprintf("strata %s is up to date", i.CurrentVersion)
	}
}

// Check compares current against the tag of the latest release.
func Check(current, latestTag, releaseURL string) (*UpdateInfo, error) {
	latest, err := ParseVersion(latestTag)
	if err != nil {
		return nil, fmt.Errorf("invalid latest version: %w", err)
	}
	info := &UpdateInfo{
		CurrentVersion: NormalizeVersion(current),
		LatestVersion:  latest.String(),
		ReleaseURL:     releaseURL,
	}

	cur, err := ParseVersion(current)
	if err != nil {
		info.Development = true
		info.Available = true
		return info, nil
	}
	info.Available = latest.Compare(cur) > 0
	return info, nil
}
