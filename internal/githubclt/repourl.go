package githubclt

import (
	"fmt"
	"regexp"
	"strings"
)

var repoURLRe = regexp.MustCompile(`^(?:https?://|ssh://|git://)?(?:[^@/]+@)?github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?/?$`)

// ParseRepositoryURL returns the owner and repository name of a GitHub
// repository URL.
// HTTPS, SSH (scp-like and ssh://) and git:// URLs are supported.
func ParseRepositoryURL(url string) (owner, repo string, err error) {
	matches := repoURLRe.FindStringSubmatch(strings.TrimSpace(url))
	if matches == nil {
		return "", "", fmt.Errorf("%q is not a github repository url", url)
	}

	return matches[1], matches[2], nil
}
