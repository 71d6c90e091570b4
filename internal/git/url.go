package git

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/adamancini/strata/internal/types"
)

const githubDomain = "github.com"

// IsHTTPSURL returns true for http(s) URLs ending in .git.
func IsHTTPSURL(u string) bool {
	return (strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")) && strings.HasSuffix(u, types.GitSuffix)
}

// IsSSHURL returns true for scp-style URLs like git@github.com:owner/repo.git.
func IsSSHURL(u string) bool {
	return strings.HasPrefix(u, "git@") && strings.HasSuffix(u, types.GitSuffix)
}

// IsValidURL returns true if u is an HTTPS or SSH repository URL.
func IsValidURL(u string) bool {
	return IsHTTPSURL(u) || IsSSHURL(u)
}

// ArchiveURL returns the branch archive download URL for a github.com
// repository, or "" for any other host.
func ArchiveURL(repoURL, branch string) string {
	base := githubBase(repoURL)
	if base == "" || branch == "" {
		return ""
	}
	return fmt.Sprintf("%s/archive/refs/heads/%s.zip", base, branch)
}

// githubBase returns https://github.com/<owner>/<repo> for a github.com
// repository URL in either HTTPS or SSH form.
func githubBase(repoURL string) string {
	var path string
	switch {
	case IsSSHURL(repoURL):
		host, p, ok := strings.Cut(strings.TrimPrefix(repoURL, "git@"), ":")
		if !ok || !strings.EqualFold(host, githubDomain) {
			return ""
		}
		path = p
	case strings.HasPrefix(repoURL, "https://") || strings.HasPrefix(repoURL, "http://"):
		u, err := url.Parse(repoURL)
		if err != nil {
			return ""
		}
		host := strings.ToLower(u.Hostname())
		if host != githubDomain && host != "www."+githubDomain {
			return ""
		}
		path = u.Path
	default:
		return ""
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, types.GitSuffix)
	if strings.Count(path, "/") != 1 {
		return ""
	}
	return "https://" + githubDomain + "/" + path
}
