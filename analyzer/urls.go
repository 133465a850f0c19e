package analyzer

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeRepositoryURL reduces a repository link to https://host/owner/repo.
// Links it cannot parse are returned unchanged.
func NormalizeRepositoryURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	candidate := raw
	if !strings.HasPrefix(strings.ToLower(candidate), "http") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Host == "" {
		return raw
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return candidate
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
	return fmt.Sprintf("https://%s/%s/%s", host, parts[0], parts[1])
}

// IsSupportedRepository reports whether the link points at the supported version-control host.
func IsSupportedRepository(codeURL, host string) bool {
	return codeURL != "" && strings.Contains(strings.ToLower(codeURL), strings.ToLower(host))
}

// SplitRepository extracts owner and repository name from a repository link.
func SplitRepository(repoURL string) (string, string, error) {
	candidate := repoURL
	if !strings.HasPrefix(strings.ToLower(candidate), "http") {
		candidate = "https://" + candidate
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", "", fmt.Errorf("invalid repository URL %q: %w", repoURL, err)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository URL %q: missing owner or repository", repoURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// NormalizeIdentity canonicalizes a link for duplicate comparison.
func NormalizeIdentity(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimRight(s, "/")
	for _, prefix := range []string{"https://", "http://", "www."} {
		s = strings.ReplaceAll(s, prefix, "")
	}
	return s
}

var (
	demoHosts = []string{
		"youtube.com", "youtu.be", "loom.com", "vimeo.com",
		"streamable.com", "drive.google.com", "dropbox.com",
	}
	fileLinkPatterns = []string{
		"github.com", "/blob/", "/raw/",
		".mp4", ".mov", ".avi", ".mkv", ".mp3", ".wav",
		".zip", ".tar", ".gz",
	}
)

// IsNonWebDeliverable reports whether the demo link cannot be tested as a website:
// it is missing, a video host, or a file or repository link.
func IsNonWebDeliverable(demoURL string) bool {
	if strings.TrimSpace(demoURL) == "" {
		return true
	}
	lower := strings.ToLower(demoURL)
	for _, host := range demoHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	for _, pattern := range fileLinkPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
