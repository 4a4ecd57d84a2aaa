package git

import (
	"os/exec"
	"regexp"
	"strings"
)

// CurrentBranch returns the checked-out branch in workingDir, or "" when the
// directory is not a git repository or HEAD is detached.
func CurrentBranch(workingDir string) string {
	cmd := exec.Command("git", "-C", workingDir, "rev-parse", "--abbrev-ref", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	branch := strings.TrimSpace(string(output))
	if branch == "HEAD" {
		// Detached HEAD
		return ""
	}
	return branch
}

// RemoteURL returns the fetch URL for the named remote in workingDir, or ""
// when the remote is not configured.
func RemoteURL(workingDir, remoteName string) string {
	cmd := exec.Command("git", "-C", workingDir, "remote", "get-url", remoteName)
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

var remotePattern = regexp.MustCompile(`(?:github\.com[:/])([^/]+)/([^/\s]+?)(?:\.git)?$`)

// OwnerRepo extracts the owner and repository name from a git remote URL,
// handling both SSH and HTTPS forms.
func OwnerRepo(remoteURL string) (owner, repo string, ok bool) {
	m := remotePattern.FindStringSubmatch(strings.TrimSpace(remoteURL))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
