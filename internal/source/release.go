package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adamancini/strata/internal/archive"
	"github.com/adamancini/strata/internal/logging"
	"github.com/adamancini/strata/internal/types"
)

// Release is the subset of the release metadata document strata reads.
type Release struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	HTMLURL string  `json:"html_url"`
	Assets  []Asset `json:"assets"`
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// FetchRelease fetches and records the release metadata without
// downloading anything.
func (s *Source) FetchRelease(ctx context.Context) (*Release, error) {
	if s.Kind != types.SourceKindLatestRelease {
		return nil, ErrNotLatestRelease
	}
	var rel Release
	if err := s.fetchJSON(ctx, s.URL, &rel); err != nil {
		return nil, fmt.Errorf("failed to fetch release info: %w", err)
	}
	s.release = &rel
	return &rel, nil
}

// MatchingAsset returns the first asset built for the source's platform.
func (s *Source) MatchingAsset(assets []Asset) (Asset, bool) {
	for _, a := range assets {
		name := filepath.Base(a.Name)
		if name != a.Name || name == "." || name == ".." {
			continue
		}
		if s.platform.MatchesAsset(name) {
			return a, true
		}
	}
	return Asset{}, false
}

func (s *Source) provideLatestRelease(ctx context.Context) (string, error) {
	rel := s.release
	if rel == nil {
		var err error
		if rel, err = s.FetchRelease(ctx); err != nil {
			return "", err
		}
	}
	if len(rel.Assets) == 0 {
		return "", ErrNoAssets
	}

	dir, err := s.createTempDir(purposeLatestRelease)
	if err != nil {
		return "", err
	}

	asset, ok := s.MatchingAsset(rel.Assets)
	if !ok {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("%w (%s)", ErrNoMatchingAsset, s.platform.Family)
	}

	logging.FromContext(ctx).Debug("downloading release asset", "asset", asset.Name, "tag", rel.TagName)
	dest := filepath.Join(dir, asset.Name)
	if err := s.download(ctx, asset.BrowserDownloadURL, dest); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("failed to download release asset: %w", err)
	}
	if info, err := os.Stat(dest); err != nil || !info.Mode().IsRegular() {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("downloaded asset not found: %s", dest)
	}

	s.dir.set(dir, true)
	return dir, nil
}

// ProvideLatestAppRelease downloads the latest release for this platform,
// extracts it, and returns the path of the executable inside it.
func (s *Source) ProvideLatestAppRelease(ctx context.Context) (string, error) {
	if s.Kind != types.SourceKindLatestRelease {
		return "", ErrNotLatestRelease
	}

	dir, err := s.ProvideDir(ctx)
	if err != nil {
		return "", err
	}

	archivePath, err := s.findMatchingArchive(dir)
	if err != nil {
		return "", err
	}
	if err := archive.Extract(archivePath, dir, archive.StripSingleRoot()); err != nil {
		return "", fmt.Errorf("failed to extract archive: %w", err)
	}

	binary := filepath.Join(dir, s.platform.ExecutableName)
	if info, err := os.Stat(binary); s.platform.ExecutableName == "" || err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrBinaryNotFound, binary)
	}
	return binary, nil
}

func (s *Source) findMatchingArchive(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() && s.platform.MatchesAsset(e.Name()) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoMatchingAsset, dir)
}
